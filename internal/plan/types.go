// Package plan turns board state and analytics into a normalized action
// plan, surviving malformed and board-echoing model output.
package plan

import (
	"rook/internal/action"
	"rook/internal/backend"
)

// Board is one observation of the world: manual notes plus analytics.
type Board struct {
	Date      string         `json:"date"`
	Inputs    map[string]any `json:"inputs"`
	Analytics map[string]any `json:"analytics"`
}

// Risk is a rule-derived problem flag on a campaign.
type Risk struct {
	CampaignID string `json:"campaign_id"`
	Issue      string `json:"issue"`
	Urgency    int    `json:"urgency"`
	Note       string `json:"note"`
}

// CampaignInsight is a rule-derived soft recommendation.
type CampaignInsight struct {
	CampaignID     string  `json:"campaign_id"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

// Insights is the output of the deterministic analytics pass.
type Insights struct {
	CampaignInsights []CampaignInsight `json:"campaign_insights"`
	Risks            []Risk            `json:"risks"`
}

// Result is a finished plan plus the backend audit trail behind it.
type Result struct {
	Actions []action.Action `json:"actions"`
	Summary string          `json:"summary"`
	Raw     backend.Result  `json:"llm_raw"`
}
