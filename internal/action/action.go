// Package action defines the canonical action vocabulary and the total
// normalizer that coerces arbitrary model output into it.
package action

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Canonical action types. Everything the normalizer emits uses one of these.
const (
	TypeCreateTask    = "create_task"
	TypeReassignTask  = "reassign_task"
	TypeAdjustBudget  = "adjust_budget"
	TypeDraftEmail    = "draft_email"
	TypeSchedulePost  = "schedule_post"
	TypePauseCampaign = "pause_campaign"
	TypeRunAnalysis   = "run_analysis"
)

// synonyms maps the action-type spellings models actually produce onto the
// canonical vocabulary. Unknown types degrade to create_task.
var synonyms = map[string]string{
	"move_card":     TypeCreateTask,
	"assign_member": TypeReassignTask,
	"add_comment":   TypeCreateTask,
	"create_card":   TypeCreateTask,
	"set_due_date":  TypeCreateTask,
	"investigation": TypeCreateTask,
	"analysis":      TypeCreateTask,
	"audit":         TypeCreateTask,
	"communication": TypeDraftEmail,
	"send_email":    TypeDraftEmail,

	TypeCreateTask:    TypeCreateTask,
	TypeReassignTask:  TypeReassignTask,
	TypeAdjustBudget:  TypeAdjustBudget,
	TypeDraftEmail:    TypeDraftEmail,
	TypeSchedulePost:  TypeSchedulePost,
	TypePauseCampaign: TypePauseCampaign,
	TypeRunAnalysis:   TypeRunAnalysis,
}

const (
	maxTaskLen     = 512
	maxCombinedLen = 800
)

// Action is a normalized, executable instruction. Details holds everything
// the model said; the typed fields mirror the keys the executor dispatches
// on so call sites do not dig through the map.
type Action struct {
	ID                 string         `json:"id"`
	ActionType         string         `json:"action_type"`
	Task               string         `json:"task,omitempty"`
	TaskID             string         `json:"task_id,omitempty"`
	CampaignID         string         `json:"campaign_id,omitempty"`
	Adjustment         *float64       `json:"adjustment,omitempty"`
	Assignee           string         `json:"assignee,omitempty"`
	To                 string         `json:"to,omitempty"`
	Subject            string         `json:"subject,omitempty"`
	Body               string         `json:"body,omitempty"`
	DueDate            string         `json:"due_date,omitempty"`
	Details            map[string]any `json:"details"`
	Reason             string         `json:"reason,omitempty"`
	Confidence         float64        `json:"confidence"`
	ExpectedImpact     any            `json:"expected_impact,omitempty"`
	Preconditions      []any          `json:"preconditions"`
	RollbackPlan       any            `json:"rollback_plan,omitempty"`
	EstimatedTimeHours float64        `json:"estimated_time_hours"`
}

// Normalize coerces a single raw action into canonical form. It is total:
// strings, lists, maps, and anything else all come back as a usable Action.
func Normalize(raw any) Action {
	switch v := raw.(type) {
	case string:
		task := clip(strings.TrimSpace(v), maxTaskLen)
		return Action{
			ID:            uuid.NewString(),
			ActionType:    TypeCreateTask,
			Task:          task,
			Details:       map[string]any{"task": task},
			Reason:        "Converted from string action",
			Confidence:    0.6,
			Preconditions: []any{},
		}
	case []any:
		return normalizeList(v)
	case map[string]any:
		return normalizeMap(v)
	default:
		task := clip(fmt.Sprint(raw), maxTaskLen)
		return Action{
			ID:            uuid.NewString(),
			ActionType:    TypeCreateTask,
			Task:          task,
			Details:       map[string]any{"task": task},
			Reason:        "Converted fallback action",
			Confidence:    0.5,
			Preconditions: []any{},
		}
	}
}

// NormalizeAll normalizes a raw actions list.
func NormalizeAll(raw []any) []Action {
	out := make([]Action, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r))
	}
	return out
}

func normalizeList(items []any) Action {
	parts := make([]string, 0, len(items))
	kept := make([]any, 0, len(items))
	for _, item := range items {
		var p string
		switch typed := item.(type) {
		case string:
			p = strings.TrimSpace(typed)
		case map[string]any:
			if s := stringValue(typed["action"]); s != "" {
				p = s
			} else if s := stringValue(typed["title"]); s != "" {
				p = s
			} else if enc, err := json.Marshal(typed); err == nil {
				p = string(enc)
			}
		default:
			p = fmt.Sprint(item)
		}
		if p != "" {
			parts = append(parts, p)
		}
		kept = append(kept, p)
	}
	combined := clip(strings.Join(parts, " | "), maxCombinedLen)
	return Action{
		ID:            uuid.NewString(),
		ActionType:    TypeCreateTask,
		Task:          combined,
		Details:       map[string]any{"task": combined, "items": kept},
		Reason:        "Converted from list of actions",
		Confidence:    0.6,
		Preconditions: []any{},
	}
}

// reservedKeys are top-level raw keys that have dedicated homes on Action
// and therefore do not get merged into Details.
var reservedKeys = map[string]bool{
	"action_type": true, "type": true, "action": true, "reason": true,
	"expected_impact": true, "preconditions": true, "rollback_plan": true,
	"confidence": true, "estimated_time_hours": true, "summary": true,
	"task": true, "id": true,
}

func normalizeMap(raw map[string]any) Action {
	act := Action{
		ID:                 stringValue(raw["id"]),
		ActionType:         canonicalType(raw),
		Reason:             firstString(raw, "reason", "summary", "title", "action"),
		ExpectedImpact:     raw["expected_impact"],
		RollbackPlan:       raw["rollback_plan"],
		Confidence:         coerceConfidence(raw["confidence"]),
		EstimatedTimeHours: coerceFloat(raw["estimated_time_hours"], 0),
		Preconditions:      []any{},
	}
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	if pre, ok := raw["preconditions"].([]any); ok {
		act.Preconditions = pre
	}

	details := map[string]any{}
	if d, ok := raw["details"].(map[string]any); ok {
		for k, v := range d {
			details[k] = v
		}
	}
	for k, v := range raw {
		if reservedKeys[k] || k == "details" {
			continue
		}
		details[k] = v
	}

	// One level of details.details is flattened; colliding inner keys get a
	// namespaced spelling so no information is dropped.
	if inner, ok := details["details"].(map[string]any); ok {
		delete(details, "details")
		for k, v := range inner {
			if _, exists := details[k]; exists {
				details["_inner_"+k] = v
			} else {
				details[k] = v
			}
		}
	}

	if t := stringValue(raw["task"]); t != "" {
		act.Task = t
	}
	if t := stringValue(raw["task_id"]); t != "" {
		act.TaskID = t
	}
	if act.Task == "" {
		act.Task = stringValue(details["task"])
	}

	// Prose-only actions ("action": "do X" and nothing else) become the task.
	if len(details) == 0 {
		if prose := stringValue(raw["action"]); prose != "" {
			details["task"] = prose
			if raw["confidence"] == nil && act.Confidence < 0.6 {
				act.Confidence = 0.6
			}
			if act.Reason == "" {
				act.Reason = clip(prose, 200)
			}
			if act.Task == "" {
				act.Task = prose
			}
		}
	}
	act.Details = details

	act.CampaignID = stringValue(details["campaign_id"])
	if act.TaskID == "" {
		act.TaskID = stringValue(details["task_id"])
	}
	if adj, ok := lookupFloat(details, "adjustment"); ok {
		act.Adjustment = &adj
	}
	act.Assignee = stringValue(details["assignee"])
	if act.Assignee == "" {
		act.Assignee = stringValue(details["member_id"])
	}
	act.To = stringValue(details["to"])
	act.Subject = stringValue(details["subject"])
	act.Body = stringValue(details["body"])
	act.DueDate = stringValue(details["due_date"])

	return act
}

func canonicalType(raw map[string]any) string {
	t := firstString(raw, "action_type", "type", "action")
	if t == "" {
		return TypeCreateTask
	}
	if mapped, ok := synonyms[strings.ToLower(strings.TrimSpace(t))]; ok {
		return mapped
	}
	return TypeCreateTask
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// stringValue renders scalars as strings and leaves everything else empty.
// Numeric IDs from models arrive as float64 and are printed without the
// trailing ".0" where they are whole.
func stringValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func coerceConfidence(v any) float64 {
	c := coerceFloat(v, 0.5)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func coerceFloat(v any, fallback float64) float64 {
	switch typed := v.(type) {
	case float64:
		return typed
	case int:
		return float64(typed)
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
			return f
		}
	}
	return fallback
}

func lookupFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	const missing = -987654.0
	f := coerceFloat(v, missing)
	if f == missing {
		return 0, false
	}
	return f, true
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
