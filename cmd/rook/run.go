package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rook/internal/orchestrator"
	"rook/internal/scenario"
	"rook/internal/store"
)

var saveLogs bool

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run one full decision cycle for a scenario",
	Long: `Loads the scenario, runs observe / analyze / plan / execute, persists the
decision record, and prints it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decisions := openDecisions()
		if decisions != nil {
			defer decisions.Close()
		}
		return runScenario(cmd, args[0], decisions)
	},
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every discovered scenario in sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := scenario.Discover(scenariosDir)
		if err != nil {
			return err
		}
		decisions := openDecisions()
		if decisions != nil {
			defer decisions.Close()
		}
		for _, name := range names {
			fmt.Println(titleStyle.Render("== " + name + " =="))
			if err := runScenario(cmd, name, decisions); err != nil {
				return err
			}
		}
		return nil
	},
}

func runScenario(cmd *cobra.Command, name string, decisions *store.DecisionStore) error {
	sc, err := scenario.Load(scenariosDir, name)
	if err != nil {
		return err
	}
	budgets := scenario.LoadBudgets(scenariosDir, cfg.Tokens.MaxOutput)
	budget := budgets.For(name)
	logger.Info("running scenario", zap.String("scenario", name), zap.Int("token_budget", budget))

	planner := buildPlanner().WithTokenBudget(budget)
	orc := orchestrator.New(sc.Analytics, planner, decisions)
	rec := orc.RunCycle(cmd.Context(), name, sc.Inputs)

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("render decision: %w", err)
	}
	fmt.Println(string(out))

	if saveLogs {
		if path, err := store.WriteJSON(filepath.Join(recordsDir(), "decisions"), "decision_"+name, rec); err != nil {
			logger.Warn("decision record file not written", zap.Error(err))
		} else {
			fmt.Println(mutedStyle.Render("saved " + path))
		}
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&saveLogs, "save-logs", false, "Also write the decision record as a JSON file")
	runAllCmd.Flags().BoolVar(&saveLogs, "save-logs", false, "Also write each decision record as a JSON file")
}
