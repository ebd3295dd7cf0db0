package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rook/internal/backend"
	"rook/internal/config"
	"rook/internal/email"
	"rook/internal/extract"
	"rook/internal/logging"
	"rook/internal/plan"
	"rook/internal/scenario"
	"rook/internal/store"
)

var (
	// Global flags
	verbose      bool
	workspace    string
	scenariosDir string
	offline      bool

	cfg    *config.Config
	logger *zap.Logger

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "rook",
	Short: "The Rook - recoverable marketing operations agent",
	Long: `The Rook turns unreliable model output into typed, executable actions.

Each cycle observes a marketing board, derives rule-based insights, asks the
backend for a plan, and coerces whatever comes back (fenced, truncated, or
board-echoing JSON included) into canonical actions that run against the
task board, analytics platform, and email outbox. Every cycle is persisted.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Debug = true
		}
		logging.Initialize(workspace)
		logging.Boot("rook starting: workspace=%s scenarios=%s transport=%s",
			workspace, scenariosDir, cfg.Backend.Transport)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List available scenarios and their token budgets",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := scenario.Discover(scenariosDir)
		if err != nil {
			return err
		}
		budgets := scenario.LoadBudgets(scenariosDir, cfg.Tokens.MaxOutput)
		fmt.Println(titleStyle.Render("Scenarios"))
		for _, name := range names {
			fmt.Printf("  %-24s %s\n", name, mutedStyle.Render(fmt.Sprintf("budget=%d tokens", budgets.For(name))))
		}
		if len(names) == 0 {
			fmt.Println(mutedStyle.Render("  (none found in " + scenariosDir + ")"))
		}
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print log and record locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(titleStyle.Render("Locations"))
		fmt.Printf("  category logs: %s\n", filepath.Join(workspace, ".rook", "logs"))
		fmt.Printf("  decisions db:  %s\n", databasePath())
		fmt.Printf("  json records:  %s\n", recordsDir())
		return nil
	},
}

// buildCaller assembles pool, invoker, and retry orchestrator from config.
// A missing key set degrades to a nil pool: every call then serves the
// deterministic fallback plan instead of failing.
func buildCaller() *backend.Caller {
	var pool *backend.Pool
	if !offline {
		var err error
		pool, err = backend.NewPool(cfg.KeyList())
		if err != nil {
			if errors.Is(err, backend.ErrNoCredentials) {
				logger.Warn("no credentials configured, running on fallback plans")
			} else {
				logger.Warn("credential pool unavailable", zap.Error(err))
			}
			pool = nil
		}
	}

	var invoker backend.Invoker
	if cfg.Backend.Transport == "http" {
		invoker = backend.NewHTTPInvoker(cfg.Backend.BaseURL, cfg.BackendTimeout())
	} else {
		invoker = backend.NewSDKInvoker()
	}
	return backend.NewCaller(pool, invoker, cfg.Backend.Model, cfg.Retry.MaxRetries, cfg.BackoffBase())
}

func buildPlanner() *plan.Planner {
	return plan.NewPlanner(extract.NewOrchestrator(buildCaller()), extract.Options{
		MaxOutputTokens: cfg.Tokens.MaxOutput,
		Temperature:     cfg.Tokens.Temperature,
		RepairTokens:    cfg.Tokens.Repair,
	})
}

func buildEmailGenerator(workerTokens, mergeTokens int) *email.Generator {
	if workerTokens <= 0 {
		workerTokens = cfg.Email.WorkerTokens
	}
	if mergeTokens <= 0 {
		mergeTokens = cfg.Email.MergeTokens
	}
	return email.NewGenerator(extract.NewOrchestrator(buildCaller()), email.Config{
		Workers:      cfg.Email.Workers,
		WorkerTokens: workerTokens,
		MergeTokens:  mergeTokens,
		RepairTokens: cfg.Tokens.Repair,
		LogDir:       filepath.Join(recordsDir(), "emails"),
	})
}

func openDecisions() *store.DecisionStore {
	db, err := store.OpenDecisions(databasePath())
	if err != nil {
		logger.Warn("decision store unavailable, continuing without persistence", zap.Error(err))
		return nil
	}
	return db
}

func databasePath() string {
	if filepath.IsAbs(cfg.Store.DatabasePath) {
		return cfg.Store.DatabasePath
	}
	return filepath.Join(workspace, cfg.Store.DatabasePath)
}

func recordsDir() string {
	if filepath.IsAbs(cfg.Store.LogsDir) {
		return cfg.Store.LogsDir
	}
	return filepath.Join(workspace, cfg.Store.LogsDir)
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory (holds .rook/)")
	rootCmd.PersistentFlags().StringVarP(&scenariosDir, "scenarios-dir", "s", "scenarios", "Directory with scenario JSON files")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Skip the backend entirely and use fallback plans")

	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runAllCmd)
	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(logsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
