// Package scenario loads demo scenario files and their per-scenario token
// budgets.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rook/internal/logging"
)

// Scenario is one demo input: manual notes plus an analytics snapshot.
type Scenario struct {
	Name      string         `json:"-"`
	Inputs    map[string]any `json:"inputs"`
	Analytics map[string]any `json:"analytics"`
}

// defaultBudgets are the hand-tuned per-scenario output token caps. Bigger
// boards need more room for the plan; a probe run can override these
// through token_budgets.json.
var defaultBudgets = map[string]int{
	"low_budget":          1400,
	"sudden_drop_in_ROAS": 1200,
	"campaign_spike":      800,
	"bad_creatives":       700,
	"content_calendar":    500,
	"dev_overload":        500,
}

// Discover lists the scenario names (file stems) under dir, sorted.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads one scenario file.
func Load(dir, name string) (Scenario, error) {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", name, err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", name, err)
	}
	s.Name = name
	if s.Inputs == nil {
		s.Inputs = map[string]any{}
	}
	if s.Analytics == nil {
		s.Analytics = map[string]any{}
	}
	return s, nil
}

// Budgets resolves token budgets: probe-written overrides from
// token_budgets.json in dir layered over the hand-tuned defaults.
type Budgets struct {
	overrides map[string]int
	fallback  int
}

// LoadBudgets reads token_budgets.json next to the scenarios, when present.
// fallback applies to scenarios with no entry anywhere.
func LoadBudgets(dir string, fallback int) Budgets {
	if fallback <= 0 {
		fallback = 400
	}
	b := Budgets{overrides: map[string]int{}, fallback: fallback}
	data, err := os.ReadFile(filepath.Join(dir, "token_budgets.json"))
	if err != nil {
		return b
	}
	var raw map[string]struct {
		Recommended int `json:"recommended"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.PlanWarn("token_budgets.json unreadable: %v", err)
		return b
	}
	for name, info := range raw {
		if info.Recommended > 0 {
			b.overrides[name] = info.Recommended
		}
	}
	return b
}

// For returns the output token budget for a scenario.
func (b Budgets) For(name string) int {
	if v, ok := b.overrides[name]; ok {
		return v
	}
	if v, ok := defaultBudgets[name]; ok {
		return v
	}
	return b.fallback
}

// WorkerTokens derives the per-draft cap for email fan-out from a budget.
func WorkerTokens(budget int) int {
	if t := budget * 20 / 100; t > 200 {
		return t
	}
	return 200
}

// MergeTokens derives the merge-call cap from a budget.
func MergeTokens(budget int) int {
	if t := budget * 30 / 100; t > 300 {
		return t
	}
	return 300
}

// EmailContext renders the scenario's manual inputs as the notes for email
// generation, clipped to keep prompts small.
func (s Scenario) EmailContext() string {
	out, err := json.Marshal(s.Inputs)
	if err != nil || len(out) == 0 || string(out) == "{}" {
		return "Client reduced budget mid-month and wants recommendations to maximize conversions."
	}
	text := string(out)
	if len(text) > 800 {
		text = text[:800]
	}
	return text
}
