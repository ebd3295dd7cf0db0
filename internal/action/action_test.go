package action

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeString(t *testing.T) {
	a := Normalize("  Call the client about the CPA spike  ")
	assert.Equal(t, TypeCreateTask, a.ActionType)
	assert.Equal(t, "Call the client about the CPA spike", a.Task)
	assert.Equal(t, "Call the client about the CPA spike", a.Details["task"])
	assert.Equal(t, 0.6, a.Confidence)
	assert.NotEmpty(t, a.ID)
}

func TestNormalizeStringCap(t *testing.T) {
	a := Normalize(strings.Repeat("x", 1000))
	assert.Len(t, a.Task, 512)
}

func TestNormalizeList(t *testing.T) {
	a := Normalize([]any{
		"first thing",
		map[string]any{"action": "second thing"},
		map[string]any{"title": "third thing"},
		42,
	})
	assert.Equal(t, TypeCreateTask, a.ActionType)
	assert.Equal(t, "first thing | second thing | third thing | 42", a.Task)
	assert.Equal(t, 0.6, a.Confidence)
	items := a.Details["items"].([]any)
	assert.Len(t, items, 4)
}

func TestNormalizeListCap(t *testing.T) {
	a := Normalize([]any{strings.Repeat("a", 500), strings.Repeat("b", 500)})
	assert.Len(t, a.Task, 800)
}

func TestNormalizeSynonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"move_card", TypeCreateTask},
		{"assign_member", TypeReassignTask},
		{"add_comment", TypeCreateTask},
		{"create_card", TypeCreateTask},
		{"set_due_date", TypeCreateTask},
		{"investigation", TypeCreateTask},
		{"analysis", TypeCreateTask},
		{"audit", TypeCreateTask},
		{"communication", TypeDraftEmail},
		{"send_email", TypeDraftEmail},
		{"adjust_budget", TypeAdjustBudget},
		{"pause_campaign", TypePauseCampaign},
		{"something_unheard_of", TypeCreateTask},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			a := Normalize(map[string]any{"action_type": tt.raw})
			assert.Equal(t, tt.want, a.ActionType)
		})
	}
}

func TestNormalizeSendEmailAlias(t *testing.T) {
	a := Normalize(map[string]any{
		"action_type": "send_email",
		"details": map[string]any{
			"to":      "client@acme.io",
			"subject": "Budget update",
			"body":    "Spend was cut 20%.",
		},
	})
	assert.Equal(t, TypeDraftEmail, a.ActionType)
	assert.Equal(t, "client@acme.io", a.To)
	assert.Equal(t, "Budget update", a.Subject)
	assert.Equal(t, "Spend was cut 20%.", a.Body)
}

func TestNormalizeTypeKeyPreference(t *testing.T) {
	a := Normalize(map[string]any{"type": "adjust_budget"})
	assert.Equal(t, TypeAdjustBudget, a.ActionType)

	a = Normalize(map[string]any{"action": "pause_campaign"})
	assert.Equal(t, TypePauseCampaign, a.ActionType)

	a = Normalize(map[string]any{"details": map[string]any{"task": "untyped"}})
	assert.Equal(t, TypeCreateTask, a.ActionType)
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"missing defaults", nil, 0.5},
		{"number passes through", 0.8, 0.8},
		{"string parsed", "0.75", 0.75},
		{"unparseable string defaults", "very sure", 0.5},
		{"clamped high", 3.5, 1.0},
		{"clamped low", -2.0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"action_type": "create_task"}
			if tt.in != nil {
				raw["confidence"] = tt.in
			}
			assert.Equal(t, tt.want, Normalize(raw).Confidence)
		})
	}
}

func TestNormalizeDetailMerging(t *testing.T) {
	a := Normalize(map[string]any{
		"action_type": "adjust_budget",
		"details":     map[string]any{"campaign_id": "c1", "adjustment": -0.2},
		"channel":     "facebook",
		"reason":      "cpa spike",
	})
	assert.Equal(t, "c1", a.CampaignID)
	require.NotNil(t, a.Adjustment)
	assert.InDelta(t, -0.2, *a.Adjustment, 1e-9)
	assert.Equal(t, "facebook", a.Details["channel"], "stray top-level keys merge into details")
	assert.Equal(t, "cpa spike", a.Reason)
}

func TestNormalizeNestedDetailsFlattened(t *testing.T) {
	a := Normalize(map[string]any{
		"action_type": "create_task",
		"details": map[string]any{
			"task": "outer",
			"details": map[string]any{
				"task":     "inner",
				"assignee": "maya",
			},
		},
	})
	assert.Equal(t, "outer", a.Details["task"], "outer keys win collisions")
	assert.Equal(t, "inner", a.Details["_inner_task"], "colliding inner keys are namespaced")
	assert.Equal(t, "maya", a.Details["assignee"], "non-colliding inner keys are lifted")
	assert.Equal(t, "maya", a.Assignee)
	_, stillNested := a.Details["details"]
	assert.False(t, stillNested)
}

func TestNormalizeMemberIDBecomesAssignee(t *testing.T) {
	a := Normalize(map[string]any{
		"action_type": "reassign_task",
		"details":     map[string]any{"task_id": "t1", "member_id": "sam"},
	})
	assert.Equal(t, "sam", a.Assignee)
	assert.Equal(t, "t1", a.TaskID)
}

func TestNormalizeProseOnlyAction(t *testing.T) {
	a := Normalize(map[string]any{"action": "Pull weekly performance report"})
	assert.Equal(t, "Pull weekly performance report", a.Details["task"])
	assert.Equal(t, "Pull weekly performance report", a.Task)
	assert.GreaterOrEqual(t, a.Confidence, 0.6, "prose conversions get a confidence bump")
	assert.NotEmpty(t, a.Reason)
}

func TestNormalizeNumericCampaignID(t *testing.T) {
	a := Normalize(map[string]any{
		"action_type": "adjust_budget",
		"details":     map[string]any{"campaign_id": float64(17), "adjustment": -0.1},
	})
	assert.Equal(t, "17", a.CampaignID)
}

func TestNormalizeTotality(t *testing.T) {
	inputs := []any{
		nil,
		true,
		3.14,
		"",
		[]any{},
		map[string]any{},
		map[string]any{"confidence": map[string]any{"nested": true}},
	}
	for _, in := range inputs {
		a := Normalize(in)
		assert.NotEmpty(t, a.ActionType, "input %#v must produce a typed action", in)
		assert.NotNil(t, a.Details)
		assert.GreaterOrEqual(t, a.Confidence, 0.0)
		assert.LessOrEqual(t, a.Confidence, 1.0)
	}
}

// Normalizing an already-normalized action changes nothing: round-trip the
// struct through JSON (the form a model would echo back) and normalize again.
func TestNormalizeIdempotent(t *testing.T) {
	first := Normalize(map[string]any{
		"action_type": "adjust_budget",
		"details":     map[string]any{"campaign_id": "c1", "adjustment": -0.2},
		"reason":      "cpa spike",
		"confidence":  0.7,
	})

	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	var echoed map[string]any
	require.NoError(t, json.Unmarshal(encoded, &echoed))

	second := Normalize(echoed)
	if diff := cmp.Diff(first, second, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("normalize not idempotent (-first +second):\n%s", diff)
	}
}
