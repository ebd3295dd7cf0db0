// Package orchestrator runs full decision cycles: observe, analyze, plan,
// execute, persist.
package orchestrator

import (
	"context"
	"time"

	"rook/internal/executor"
	"rook/internal/logging"
	"rook/internal/plan"
	"rook/internal/store"
	"rook/internal/tools"
)

// Orchestrator owns the tool layer and the planner for a run.
type Orchestrator struct {
	Analytics *tools.AnalyticsStore
	Tasks     *tools.TaskStore
	Outbox    *tools.Outbox
	Planner   *plan.Planner
	// Decisions is optional; cycles still run without persistence.
	Decisions *store.DecisionStore
}

// New builds an orchestrator over an analytics snapshot with fresh task and
// email state.
func New(analytics map[string]any, planner *plan.Planner, decisions *store.DecisionStore) *Orchestrator {
	return &Orchestrator{
		Analytics: tools.NewAnalyticsStore(analytics),
		Tasks:     tools.NewTaskStore(),
		Outbox:    tools.NewOutbox(),
		Planner:   planner,
		Decisions: decisions,
	}
}

// RunCycle performs one observe-analyze-plan-execute pass and returns the
// full decision record. The record is saved when a decision store is wired;
// a save failure is logged but does not fail the cycle, since the plan has
// already executed.
func (o *Orchestrator) RunCycle(ctx context.Context, scenarioName string, inputs map[string]any) store.DecisionRecord {
	board := plan.Observe(inputs, o.Analytics.Fetch())
	insights := plan.AnalyzeMetrics(board.Analytics)
	logging.Plan("cycle start: scenario=%s risks=%d insights=%d",
		scenarioName, len(insights.Risks), len(insights.CampaignInsights))

	planned := o.Planner.PlanActions(ctx, board, insights)
	exec := executor.New(o.Tasks, o.Analytics, o.Outbox)
	results := exec.ExecutePlan(planned.Actions)

	rec := store.DecisionRecord{
		Scenario:  scenarioName,
		Date:      board.Date,
		Board:     board,
		Insights:  insights,
		Plan:      planned,
		Results:   results,
		CreatedAt: time.Now().UTC(),
	}
	if o.Decisions != nil {
		id, err := o.Decisions.Save(rec)
		if err != nil {
			logging.StoreError("decision not persisted: %v", err)
		} else {
			rec.ID = id
		}
	}
	logging.Plan("cycle done: scenario=%s actions=%d origin=%s",
		scenarioName, len(planned.Actions), planned.Raw.Meta.Origin)
	return rec
}
