package action

// BudgetCut builds the raw form of the standard defensive response to a
// high-CPA flag: a 20% spend reduction on the campaign.
func BudgetCut(campaignID any, reason string) map[string]any {
	if reason == "" {
		reason = "High CPA detected"
	}
	return map[string]any{
		"action_type": TypeAdjustBudget,
		"details":     map[string]any{"campaign_id": campaignID, "adjustment": -0.2},
		"reason":      reason,
		"confidence":  0.6,
	}
}

// SynthesizeFromBoard handles the case where the model echoed board state
// instead of a plan: any campaign carrying a high_cpa risk gets a budget
// cut. Returns raw actions for Normalize; empty when nothing was flagged.
func SynthesizeFromBoard(parsed map[string]any) []map[string]any {
	var out []map[string]any
	campaigns, _ := parsed["campaigns"].([]any)
	for _, c := range campaigns {
		campaign, ok := c.(map[string]any)
		if !ok {
			continue
		}
		var risks []any
		switch r := campaign["risks"].(type) {
		case []any:
			risks = r
		case map[string]any:
			risks = []any{r}
		}
		for _, r := range risks {
			risk, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if risk["issue"] != "high_cpa" {
				continue
			}
			note := stringValue(risk["note"])
			out = append(out, BudgetCut(campaign["campaign_id"], note))
		}
	}
	return out
}
