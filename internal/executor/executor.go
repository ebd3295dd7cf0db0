// Package executor dispatches normalized actions against the tool layer.
package executor

import (
	"rook/internal/action"
	"rook/internal/logging"
	"rook/internal/plan"
	"rook/internal/tools"
)

// StepResult pairs one action with what happened when it ran.
type StepResult struct {
	Action action.Action  `json:"action"`
	OK     bool           `json:"ok"`
	Reason string         `json:"reason,omitempty"`
	Output map[string]any `json:"output,omitempty"`
}

// Executor routes actions to the task board, analytics platform, and email
// outbox. Execution never aborts the plan: a failed step is recorded and
// the next one runs.
type Executor struct {
	Tasks     *tools.TaskStore
	Analytics *tools.AnalyticsStore
	Outbox    *tools.Outbox
}

// New builds an executor over the given tool set.
func New(tasks *tools.TaskStore, analytics *tools.AnalyticsStore, outbox *tools.Outbox) *Executor {
	return &Executor{Tasks: tasks, Analytics: analytics, Outbox: outbox}
}

// ExecutePlan runs every action in order and returns per-step results.
func (e *Executor) ExecutePlan(actions []action.Action) []StepResult {
	results := make([]StepResult, 0, len(actions))
	for _, a := range actions {
		results = append(results, e.execute(a))
	}
	return results
}

func (e *Executor) execute(a action.Action) StepResult {
	switch a.ActionType {
	case action.TypeCreateTask:
		return e.createTask(a)
	case action.TypeAdjustBudget:
		return e.adjustBudget(a)
	case action.TypeReassignTask:
		return e.reassignTask(a)
	case action.TypeDraftEmail:
		return e.sendEmail(a)
	case action.TypeSchedulePost:
		return e.schedulePost(a)
	case action.TypePauseCampaign:
		return e.pauseCampaign(a)
	case action.TypeRunAnalysis:
		return e.runAnalysis(a)
	default:
		logging.TasksWarn("unknown action type %q", a.ActionType)
		return StepResult{Action: a, OK: false, Reason: "unknown_action"}
	}
}

func (e *Executor) createTask(a action.Action) StepResult {
	created := e.Tasks.Create(taskFromAction(a))
	return StepResult{Action: a, OK: true, Output: map[string]any{"task_id": created.ID}}
}

func (e *Executor) adjustBudget(a action.Action) StepResult {
	if a.CampaignID == "" || a.Adjustment == nil {
		return StepResult{Action: a, OK: false, Reason: "missing_campaign_or_adjustment"}
	}
	change, err := e.Analytics.AdjustBudget(a.CampaignID, *a.Adjustment)
	if err != nil {
		return StepResult{Action: a, OK: false, Reason: "campaign_not_found"}
	}
	return StepResult{Action: a, OK: true, Output: map[string]any{
		"campaign_id": change.CampaignID,
		"old_spend":   change.OldSpend,
		"new_spend":   change.NewSpend,
	}}
}

func (e *Executor) reassignTask(a action.Action) StepResult {
	taskID := a.TaskID
	newAssignee := a.To
	if newAssignee == "" {
		newAssignee = a.Assignee
	}
	if taskID == "" {
		// No explicit target: try to find a task held by the "from" person.
		if from := detailString(a, "from"); from != "" {
			taskID = e.Tasks.FindByAssignee(from)
		} else if member := detailString(a, "member_id"); member != "" {
			taskID = e.Tasks.FindByAssignee(member)
		}
	}
	if taskID == "" {
		// Still nothing to move; degrade to creating the task for the target.
		created := e.Tasks.Create(taskFromAction(a))
		return StepResult{Action: a, OK: true, Output: map[string]any{"created_task": created.ID}}
	}
	task, err := e.Tasks.Reassign(taskID, newAssignee)
	if err != nil {
		return StepResult{Action: a, OK: false, Reason: "not_found"}
	}
	return StepResult{Action: a, OK: true, Output: map[string]any{
		"task_id":      task.ID,
		"new_assignee": task.Assignee,
	}}
}

func (e *Executor) sendEmail(a action.Action) StepResult {
	to := a.To
	if to == "" {
		to = "ops@company"
	}
	subject := a.Subject
	if subject == "" {
		subject = "Update"
	}
	msg := e.Outbox.Send(to, subject, a.Body)
	return StepResult{Action: a, OK: true, Output: map[string]any{"email_id": msg.ID}}
}

func (e *Executor) schedulePost(a action.Action) StepResult {
	title := a.Task
	if title == "" {
		title = "Publish scheduled post"
	}
	t := taskFromAction(a)
	t.Title = title
	created := e.Tasks.Create(t)
	return StepResult{Action: a, OK: true, Output: map[string]any{"task_id": created.ID, "scheduled": true}}
}

func (e *Executor) pauseCampaign(a action.Action) StepResult {
	if a.CampaignID == "" {
		return StepResult{Action: a, OK: false, Reason: "missing_campaign"}
	}
	if err := e.Analytics.PauseCampaign(a.CampaignID); err != nil {
		return StepResult{Action: a, OK: false, Reason: "campaign_not_found"}
	}
	return StepResult{Action: a, OK: true, Output: map[string]any{"campaign_id": a.CampaignID, "status": "paused"}}
}

func (e *Executor) runAnalysis(a action.Action) StepResult {
	insights := plan.AnalyzeMetrics(e.Analytics.Fetch())
	return StepResult{Action: a, OK: true, Output: map[string]any{
		"risks":    len(insights.Risks),
		"insights": len(insights.CampaignInsights),
	}}
}

// taskFromAction builds a task payload from the action's convenience fields
// and detail keys, in order of preference.
func taskFromAction(a action.Action) tools.Task {
	title := a.Task
	if title == "" {
		title = firstDetail(a, "card_title", "task", "description", "title")
	}
	assignee := a.Assignee
	if assignee == "" {
		assignee = a.To
	}
	if assignee == "" {
		assignee = firstDetail(a, "member_id", "to")
	}
	due := a.DueDate
	if due == "" {
		due = firstDetail(a, "due")
	}
	return tools.Task{
		ID:       a.TaskID,
		Title:    title,
		Assignee: assignee,
		Due:      due,
		Meta:     a.Details,
	}
}

func detailString(a action.Action, key string) string {
	if s, ok := a.Details[key].(string); ok {
		return s
	}
	return ""
}

func firstDetail(a action.Action, keys ...string) string {
	for _, k := range keys {
		if s := detailString(a, k); s != "" {
			return s
		}
	}
	return ""
}
