package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rook/internal/executor"
	"rook/internal/extract"
	"rook/internal/plan"
	"rook/internal/tools"
)

var tasksTokens int

var tasksCmd = &cobra.Command{
	Use:   "tasks [prompt...]",
	Short: "Turn a free-form prompt into structured tasks",
	Long: `Asks the backend to break a prompt into actions, normalizes them, and
runs them against a fresh in-memory task board. Useful for poking at the
extraction and normalization path directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")

		planner := buildPlanner().WithTokenBudget(tasksTokens)
		board := plan.Observe(map[string]any{"notes": prompt}, nil)
		result := planner.PlanActions(cmd.Context(), board, plan.Insights{
			CampaignInsights: []plan.CampaignInsight{},
			Risks:            []plan.Risk{},
		})

		taskStore := tools.NewTaskStore()
		exec := executor.New(taskStore, tools.NewAnalyticsStore(nil), tools.NewOutbox())
		results := exec.ExecutePlan(result.Actions)

		fmt.Println(titleStyle.Render("Actions"))
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		fmt.Println(titleStyle.Render("Task board"))
		for _, t := range taskStore.All() {
			fmt.Printf("  %-38s %-30s %s\n", t.ID, clipTitle(t.Title), mutedStyle.Render(t.Assignee))
		}
		if _, ok := extract.Parse(result.Raw.Text); !ok {
			fmt.Println(mutedStyle.Render("note: completion needed recovery, origin=" + string(result.Raw.Meta.Origin)))
		}
		return nil
	},
}

func clipTitle(s string) string {
	if len(s) > 30 {
		return s[:27] + "..."
	}
	return s
}

func init() {
	tasksCmd.Flags().IntVar(&tasksTokens, "tokens", 400, "Max output tokens for task generation")
}
