package backend

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInvoker fails or succeeds per attempt and records which
// credentials it was handed.
type scriptedInvoker struct {
	mu       sync.Mutex
	errs     []error // consumed in order; nil means success
	keysSeen []string
}

func (s *scriptedInvoker) Invoke(_ context.Context, req Request) (string, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keysSeen = append(s.keysSeen, req.Credential.Raw())
	if len(s.errs) == 0 {
		return `{"actions":[],"summary":"ok"}`, nil, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	if err == nil {
		return `{"actions":[],"summary":"ok"}`, nil, nil
	}
	return "", nil, err
}

func newTestCaller(t *testing.T, inv Invoker, keys ...string) *Caller {
	t.Helper()
	pool, err := NewPool(keys)
	require.NoError(t, err)
	return NewCaller(pool, inv, "gemini-2.5-flash", 4, 0)
}

func TestCallSucceedsFirstAttempt(t *testing.T) {
	inv := &scriptedInvoker{}
	c := newTestCaller(t, inv, "alpha-111111")

	res := c.Call(context.Background(), CallRequest{Prompt: "plan"})
	assert.Equal(t, OriginBackend, res.Meta.Origin)
	assert.Equal(t, 1, res.Meta.AttemptsUsed)
	assert.Equal(t, "...111111", res.Meta.KeyMasked)
	assert.Empty(t, res.Meta.Error)
}

func TestCallRotatesOnQuotaThenSucceeds(t *testing.T) {
	inv := &scriptedInvoker{errs: []error{
		NewError(KindQuota, "quota exceeded").WithStatus(429),
		nil,
	}}
	c := newTestCaller(t, inv, "alpha-111111", "bravo-222222")

	res := c.Call(context.Background(), CallRequest{Prompt: "plan"})
	assert.Equal(t, OriginBackend, res.Meta.Origin)
	assert.Equal(t, 2, res.Meta.AttemptsUsed)
	require.Len(t, inv.keysSeen, 2)
	assert.NotEqual(t, inv.keysSeen[0], inv.keysSeen[1], "quota failure must rotate to the next key")
}

func TestCallExhaustsRetriesAndFallsBack(t *testing.T) {
	inv := &scriptedInvoker{errs: []error{
		NewError(KindQuota, "quota exceeded").WithStatus(429),
		NewError(KindQuota, "quota exceeded").WithStatus(429),
		NewError(KindQuota, "quota exceeded").WithStatus(429),
		NewError(KindQuota, "quota exceeded").WithStatus(429),
	}}
	c := newTestCaller(t, inv, "alpha-111111", "bravo-222222", "charlie-333333")

	res := c.Call(context.Background(), CallRequest{Prompt: "high_cpa on c1"})
	assert.Equal(t, OriginFallbackAfterError, res.Meta.Origin)
	assert.Equal(t, 4, res.Meta.AttemptsUsed)
	assert.Contains(t, res.Meta.Error, "quota")
	assert.Len(t, inv.keysSeen, 4)

	// With three keys and four attempts the cursor wrapped: the fourth
	// attempt reuses the first key tried.
	assert.Equal(t, inv.keysSeen[0], inv.keysSeen[3])
}

func TestCallTransportErrorsAlsoRotate(t *testing.T) {
	inv := &scriptedInvoker{errs: []error{
		NewError(KindTransport, "connection reset"),
		nil,
	}}
	c := newTestCaller(t, inv, "alpha-111111", "bravo-222222")

	res := c.Call(context.Background(), CallRequest{Prompt: "plan"})
	assert.Equal(t, OriginBackend, res.Meta.Origin)
	require.Len(t, inv.keysSeen, 2)
	assert.NotEqual(t, inv.keysSeen[0], inv.keysSeen[1])
}

func TestCallWithoutPoolServesFallback(t *testing.T) {
	c := NewCaller(nil, &scriptedInvoker{}, "gemini-2.5-flash", 4, 0)

	res := c.Call(context.Background(), CallRequest{Prompt: "anything"})
	assert.Equal(t, OriginFallback, res.Meta.Origin)
	assert.Equal(t, 0, res.Meta.AttemptsUsed)

	var plan struct {
		Actions []map[string]any `json:"actions"`
		Summary string           `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text), &plan))
	assert.NotEmpty(t, plan.Actions)
}

func TestCallRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := &scriptedInvoker{errs: []error{NewError(KindTransport, "boom")}}
	c := newTestCaller(t, inv, "alpha-111111")

	res := c.Call(ctx, CallRequest{Prompt: "plan"})
	assert.Equal(t, OriginFallbackAfterError, res.Meta.Origin)
	assert.Len(t, inv.keysSeen, 1, "cancelled context must stop further attempts")
	assert.Equal(t, 1, res.Meta.AttemptsUsed, "metadata reflects attempts that actually ran")
}

func TestFallbackTextKeywordPlans(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		wantType   string
		wantDetail string
	}{
		{"high cpa plan", "board shows high_cpa on c1", "adjust_budget", "adjustment"},
		{"overload plan", "sprint notes: dev_overload, sam has six tasks", "reassign_task", "assignee"},
		{"generic plan", "nothing special here", "create_task", "task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var plan struct {
				Actions []map[string]any `json:"actions"`
				Summary string           `json:"summary"`
			}
			require.NoError(t, json.Unmarshal([]byte(FallbackText(tt.prompt)), &plan))
			require.NotEmpty(t, plan.Actions)
			first := plan.Actions[0]
			assert.Equal(t, tt.wantType, first["action_type"])
			details, ok := first["details"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantDetail)
			assert.NotEmpty(t, plan.Summary)
		})
	}
}

func TestFallbackHighCPAAdjustment(t *testing.T) {
	var plan struct {
		Actions []map[string]any `json:"actions"`
	}
	require.NoError(t, json.Unmarshal([]byte(FallbackText("high_cpa everywhere")), &plan))

	budgetCuts := 0
	for _, a := range plan.Actions {
		if a["action_type"] == "adjust_budget" {
			budgetCuts++
			details := a["details"].(map[string]any)
			assert.InDelta(t, -0.2, details["adjustment"], 1e-9)
		}
	}
	assert.Equal(t, 1, budgetCuts)
}
