package plan

import (
	"fmt"
	"math"
	"strconv"
)

// AnalyzeMetrics runs the deterministic analytics rules over the campaigns
// in the analytics snapshot. Two rules: CPA above target flags a high_cpa
// risk at urgency 8, and a downward trend recommends a creative review.
func AnalyzeMetrics(analytics map[string]any) Insights {
	insights := Insights{
		CampaignInsights: []CampaignInsight{},
		Risks:            []Risk{},
	}
	campaigns, _ := analytics["campaigns"].([]any)
	for _, raw := range campaigns {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := asString(c["campaign_id"])
		target := asFloat(c["target_cpa"], math.Inf(1))
		cpa := asFloat(c["cpa"], 0)
		if target > 0 && !math.IsInf(target, 1) && cpa > target {
			insights.Risks = append(insights.Risks, Risk{
				CampaignID: id,
				Issue:      "high_cpa",
				Urgency:    8,
				Note:       fmt.Sprintf("CPA %v > target %v", trimFloat(cpa), trimFloat(target)),
			})
		}
		if c["trend"] == "down" {
			insights.CampaignInsights = append(insights.CampaignInsights, CampaignInsight{
				CampaignID:     id,
				Recommendation: "investigate_creatives",
				Confidence:     0.6,
			})
		}
	}
	return insights
}

func asString(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return trimFloat(typed)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func asFloat(v any, fallback float64) float64 {
	switch typed := v.(type) {
	case float64:
		return typed
	case int:
		return float64(typed)
	case string:
		if f, err := strconv.ParseFloat(typed, 64); err == nil {
			return f
		}
	}
	return fallback
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
