package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"position-analyzer/internal/analyzer"
	"position-analyzer/internal/journal"
	"position-analyzer/internal/logger"
	"position-analyzer/internal/report"
	"position-analyzer/internal/snapshot"
	"position-analyzer/internal/store"
	"position-analyzer/internal/types"
)

// errRunFailed makes the process exit 1 after the failure was already shown.
var errRunFailed = errors.New("run failed")

type options struct {
	configPath string
	userID     string
	symbol     string
	outputDir  string
	question   string
	summaryDir string
}

func newRootCmd() *cobra.Command {
	opts := &options{summaryDir: "."}

	rootCmd := &cobra.Command{
		Use:   "analyzer",
		Short: "AI Stock Position Analyzer",
		Long: `Analyzes cached position snapshots with a hosted language model and stores
each answer as a conversation. Without --symbol every stock in the latest
positions snapshot is analyzed and a batch summary file is written.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeSystem()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.Flags().Changed("output-dir"), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Configuration file path (optional)")
	rootCmd.PersistentFlags().StringVar(&opts.outputDir, "output-dir", "../output", "Directory containing JSON files")

	rootCmd.Flags().StringVar(&opts.userID, "user-id", "", "User ID for database storage")
	rootCmd.Flags().StringVar(&opts.symbol, "symbol", "", "Analyze a specific symbol (analyzes all if not provided)")
	rootCmd.Flags().StringVar(&opts.question, "question", "", "Custom analysis question")
	rootCmd.MarkFlagRequired("user-id")

	rootCmd.AddCommand(newSnapshotsCmd(opts))
	return rootCmd
}

func newSnapshotsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "Generate <SYMBOL>.json snapshots from the latest positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(cmd.Context(), cmd.OutOrStdout(), cmd.Flags().Changed("output-dir"), opts)
		},
	}
}

// prepare loads configuration and secrets, applying flag overrides.
func prepare(ctx context.Context, console *report.Console, opts *options, outputDirSet bool,
	secrets func() (store.Secrets, error)) (*store.Config, error) {
	cfg, err := loadConfig(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	if outputDirSet || cfg.OutputDir == "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.question != "" {
		cfg.Question = opts.question
	}

	cfg.Secrets, err = secrets()
	if err != nil {
		if types.IsConfiguration(err) {
			console.Fatal("Configuration Error: " + err.Error())
			console.RequiredEnv(store.RequiredEnv())
			return nil, errRunFailed
		}
		return nil, err
	}
	return cfg, nil
}

func runAnalyze(ctx context.Context, out io.Writer, outputDirSet bool, opts *options) error {
	console := report.New(out)

	cfg, err := prepare(ctx, console, opts, outputDirSet, store.LoadSecrets)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(opts.userID); err != nil {
		logger.Warn(ctx, "User ID is not a UUID; the insert may be rejected", "user_id", opts.userID)
	}

	positions, conversations := initializeStores(cfg)
	pipeline := analyzer.New(cfg,
		positions,
		snapshot.NewLoader(cfg.OutputDir),
		initializeCompleter(ctx, cfg),
		conversations,
	)

	j := journal.FromEnv()
	compressOldJournals(ctx, j)

	symbol := strings.TrimSpace(opts.symbol)
	console.Start(symbol)

	if symbol != "" {
		outcome := pipeline.AnalyzeStock(ctx, symbol, opts.userID, cfg.Question)
		record(ctx, j, "", []types.Outcome{outcome})
		console.Outcome(outcome, true)
		if !outcome.Success {
			return errRunFailed
		}
		return nil
	}

	summary, err := pipeline.AnalyzeAll(ctx, opts.userID, cfg.Question)
	if err != nil {
		console.Fatal("Error: " + err.Error())
		return errRunFailed
	}
	record(ctx, j, summary.RunID, summary.Results)
	for _, o := range summary.Results {
		console.Outcome(o, false)
	}

	path, err := analyzer.WriteSummary(opts.summaryDir, summary, time.Now())
	if err != nil {
		return err
	}
	console.Summary(summary, path)

	if summary.Failed > 0 {
		return errRunFailed
	}
	return nil
}

func runSnapshots(ctx context.Context, out io.Writer, outputDirSet bool, opts *options) error {
	console := report.New(out)

	cfg, err := prepare(ctx, console, opts, outputDirSet, store.LoadStoreSecrets)
	if err != nil {
		return err
	}

	positions, _ := initializeStores(cfg)
	res, err := snapshot.NewGenerator(positions, cfg.OutputDir).Generate(ctx)
	if err != nil {
		console.Fatal("Error: " + err.Error())
		return errRunFailed
	}
	console.Snapshots(res.Written, res.Failed)

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d snapshot(s) failed", len(res.Failed))
	}
	return nil
}

func record(ctx context.Context, j *journal.Journal, runID string, outcomes []types.Outcome) {
	if err := j.Record(runID, outcomes); err != nil {
		logger.Warn(ctx, "Failed to journal outcomes", "error", err, "dir", j.Dir())
	}
}
