package backend

import (
	"encoding/json"
	"strings"
)

type fallbackAction struct {
	ActionType string         `json:"action_type"`
	Details    map[string]any `json:"details"`
	Reason     string         `json:"reason"`
	Confidence float64        `json:"confidence"`
}

type fallbackPlan struct {
	Actions []fallbackAction `json:"actions"`
	Summary string           `json:"summary"`
}

// FallbackText builds the deterministic plan served when the backend is
// unreachable. The plan is keyed off keywords in the prompt so the rest of
// the pipeline still gets something sensible to normalize and execute.
func FallbackText(prompt string) string {
	lower := strings.ToLower(prompt)

	var plan fallbackPlan
	switch {
	case strings.Contains(lower, "high_cpa") || strings.Contains(lower, "cpa") || strings.Contains(lower, "cost increase"):
		plan = fallbackPlan{
			Actions: []fallbackAction{
				{
					ActionType: "adjust_budget",
					Details:    map[string]any{"campaign_id": "c_fallback", "adjustment": -0.2},
					Reason:     "CPA above target, reducing spend while the backend is unavailable",
					Confidence: 0.55,
				},
				{
					ActionType: "create_task",
					Details:    map[string]any{"task": "Investigate creative fatigue on the flagged campaign", "assignee": "ana"},
					Reason:     "Manual follow-up for the cost spike",
					Confidence: 0.5,
				},
			},
			Summary: "Fallback plan: reduce spend on the high-CPA campaign and open an investigation task.",
		}
	case strings.Contains(lower, "overload") || strings.Contains(lower, "dev_overload"):
		plan = fallbackPlan{
			Actions: []fallbackAction{
				{
					ActionType: "reassign_task",
					Details:    map[string]any{"task_id": "t_fallback", "assignee": "maya"},
					Reason:     "Rebalance workload away from the overloaded assignee",
					Confidence: 0.5,
				},
				{
					ActionType: "draft_email",
					Details:    map[string]any{"to": "team", "subject": "Workload rebalancing", "body": "Shifting one task to even out the sprint load."},
					Reason:     "Notify the team about the reassignment",
					Confidence: 0.5,
				},
			},
			Summary: "Fallback plan: reassign one task and notify the team.",
		}
	default:
		plan = fallbackPlan{
			Actions: []fallbackAction{
				{
					ActionType: "create_task",
					Details:    map[string]any{"task": "Review marketing board manually", "assignee": "lead"},
					Reason:     "Backend unavailable, flagging for human review",
					Confidence: 0.4,
				},
			},
			Summary: "Fallback plan: manual review requested.",
		}
	}

	out, err := json.Marshal(plan)
	if err != nil {
		// The plan is built from literals above, so this cannot fire; keep a
		// parseable sentinel anyway.
		return `{"actions":[],"summary":"fallback"}`
	}
	return string(out)
}
