package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStoreCreate(t *testing.T) {
	s := NewTaskStore()

	created := s.Create(Task{Title: "Review creatives", Assignee: "ana"})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Review creatives", created.Title)

	// A provided ID is honored, and re-creating under it replaces the task.
	again := s.Create(Task{ID: created.ID, Title: "Review creatives v2"})
	assert.Equal(t, created.ID, again.ID)
	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Review creatives v2", all[0].Title)
}

func TestTaskStoreDefaultsTitle(t *testing.T) {
	s := NewTaskStore()
	created := s.Create(Task{})
	assert.Equal(t, "Auto-created task", created.Title)
}

func TestTaskStoreReassign(t *testing.T) {
	s := NewTaskStore()
	created := s.Create(Task{Title: "Landing page", Assignee: "sam"})

	moved, err := s.Reassign(created.ID, "maya")
	require.NoError(t, err)
	assert.Equal(t, "maya", moved.Assignee)

	_, err = s.Reassign("missing", "maya")
	assert.Error(t, err)
}

func TestTaskStoreFindByAssignee(t *testing.T) {
	s := NewTaskStore()
	first := s.Create(Task{Title: "one", Assignee: "sam"})
	s.Create(Task{Title: "two", Assignee: "sam"})

	assert.Equal(t, first.ID, s.FindByAssignee("sam"), "creation order wins")
	assert.Empty(t, s.FindByAssignee("nobody"))
}

func TestAnalyticsStoreAdjustBudget(t *testing.T) {
	s := NewAnalyticsStore(map[string]any{
		"campaigns": []any{
			map[string]any{"campaign_id": "c1", "daily_spend": 120.0},
			map[string]any{"campaign_id": 17.0, "daily_spend": 50.0},
		},
	})

	change, err := s.AdjustBudget("c1", -0.2)
	require.NoError(t, err)
	assert.Equal(t, BudgetChange{CampaignID: "c1", OldSpend: 120.0, NewSpend: 96.0}, change)

	// New spend is rounded to cents and written through to the snapshot.
	change, err = s.AdjustBudget("c1", 0.333)
	require.NoError(t, err)
	assert.Equal(t, 127.97, change.NewSpend)

	// Numeric campaign IDs match their string form.
	change, err = s.AdjustBudget("17", 0.1)
	require.NoError(t, err)
	assert.Equal(t, 55.0, change.NewSpend)

	_, err = s.AdjustBudget("ghost", -0.2)
	assert.Error(t, err)
}

func TestAnalyticsStorePauseCampaign(t *testing.T) {
	s := NewAnalyticsStore(map[string]any{
		"campaigns": []any{map[string]any{"campaign_id": "c1", "daily_spend": 120.0}},
	})

	require.NoError(t, s.PauseCampaign("c1"))
	campaigns := s.Fetch()["campaigns"].([]any)
	assert.Equal(t, "paused", campaigns[0].(map[string]any)["status"])

	assert.Error(t, s.PauseCampaign("ghost"))
}

func TestOutbox(t *testing.T) {
	o := NewOutbox()
	sent := o.Send("client@acme.io", "Update", "body text")
	assert.NotEmpty(t, sent.ID)
	assert.False(t, sent.SentAt.IsZero())

	o.Send("ops@company", "Second", "more")
	all := o.Sent()
	require.Len(t, all, 2)
	assert.Equal(t, "client@acme.io", all[0].To)
	assert.Equal(t, "Second", all[1].Subject)
}
