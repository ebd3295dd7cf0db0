package tools

import (
	"fmt"
	"math"
	"sync"

	"rook/internal/logging"
)

// BudgetChange reports one spend adjustment.
type BudgetChange struct {
	CampaignID string  `json:"campaign_id"`
	OldSpend   float64 `json:"old_spend"`
	NewSpend   float64 `json:"new_spend"`
}

// AnalyticsStore wraps a mutable analytics snapshot, the shape scenario
// files provide: {"campaigns": [{"campaign_id": ..., "daily_spend": ...}]}.
type AnalyticsStore struct {
	mu   sync.Mutex
	data map[string]any
}

// NewAnalyticsStore wraps a snapshot. Mutations write through to it.
func NewAnalyticsStore(data map[string]any) *AnalyticsStore {
	if data == nil {
		data = map[string]any{}
	}
	return &AnalyticsStore{data: data}
}

// Fetch returns the current snapshot.
func (s *AnalyticsStore) Fetch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// AdjustBudget scales a campaign's daily spend by (1 + adjustment), so
// -0.2 is a 20% cut. The new spend is rounded to cents.
func (s *AnalyticsStore) AdjustBudget(campaignID string, adjustment float64) (BudgetChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.findCampaign(campaignID)
	if err != nil {
		return BudgetChange{}, err
	}
	old, _ := c["daily_spend"].(float64)
	updated := math.Round(old*(1+adjustment)*100) / 100
	c["daily_spend"] = updated
	logging.Tasks("adjusted budget for %s: %.2f -> %.2f (%.0f%%)", campaignID, old, updated, adjustment*100)
	return BudgetChange{CampaignID: campaignID, OldSpend: old, NewSpend: updated}, nil
}

// PauseCampaign marks a campaign paused.
func (s *AnalyticsStore) PauseCampaign(campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.findCampaign(campaignID)
	if err != nil {
		return err
	}
	c["status"] = "paused"
	logging.Tasks("paused campaign %s", campaignID)
	return nil
}

func (s *AnalyticsStore) findCampaign(campaignID string) (map[string]any, error) {
	campaigns, _ := s.data["campaigns"].([]any)
	for _, raw := range campaigns {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if idMatches(c["campaign_id"], campaignID) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("campaign %s not found", campaignID)
}

func idMatches(v any, id string) bool {
	switch typed := v.(type) {
	case string:
		return typed == id
	case float64:
		return fmt.Sprintf("%v", typed) == id || fmt.Sprintf("%d", int64(typed)) == id
	default:
		return false
	}
}
