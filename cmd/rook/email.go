package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rook/internal/scenario"
)

var (
	emailSubject string
	emailNotes   string
)

var emailCmd = &cobra.Command{
	Use:   "email [scenario]",
	Short: "Generate a merged client email for a scenario",
	Long: `Fans out parallel drafts, merges them, and repairs the merge when the
model leaked raw SDK output into it. Worker and merge token caps are derived
from the scenario's token budget.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes := emailNotes
		subject := emailSubject
		workerTokens, mergeTokens := 0, 0

		if len(args) == 1 {
			sc, err := scenario.Load(scenariosDir, args[0])
			if err != nil {
				return err
			}
			if notes == "" {
				notes = sc.EmailContext()
			}
			if subject == "" {
				subject = "Update on " + args[0]
			}
			budget := scenario.LoadBudgets(scenariosDir, cfg.Tokens.MaxOutput).For(args[0])
			workerTokens = scenario.WorkerTokens(budget)
			mergeTokens = scenario.MergeTokens(budget)
			logger.Info("email budgets derived",
				zap.Int("budget", budget), zap.Int("worker_tokens", workerTokens), zap.Int("merge_tokens", mergeTokens))
		}
		if subject == "" {
			subject = "Update"
		}
		if notes == "" {
			notes = "Client reduced budget mid-month and wants recommendations to maximize conversions."
		}

		gen := buildEmailGenerator(workerTokens, mergeTokens)
		final, _ := gen.GenerateMerged(cmd.Context(), subject, notes)

		fmt.Println(titleStyle.Render("Final email"))
		out, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	emailCmd.Flags().StringVar(&emailSubject, "subject", "", "Subject hint for the drafts")
	emailCmd.Flags().StringVar(&emailNotes, "notes", "", "Notes to write from (defaults to scenario inputs)")
}
