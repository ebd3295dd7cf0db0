package plan

import "time"

// Observe snapshots manual inputs and analytics into a dated board.
func Observe(inputs, analytics map[string]any) Board {
	if inputs == nil {
		inputs = map[string]any{}
	}
	if analytics == nil {
		analytics = map[string]any{}
	}
	return Board{
		Date:      time.Now().Format("2006-01-02"),
		Inputs:    inputs,
		Analytics: analytics,
	}
}
