package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/app"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/console"
	"github.com/mikeboe/deep-research/pkg/research"
)

var (
	topic        string
	outputPath   string
	dedupe       bool
	maxFollowUps int
	concurrency  int
	quiet        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long: `deep-research investigates a topic over several rounds of web search.
Each round searches, summarizes the pages it finds and decides whether a follow-up round is needed.
The findings are then synthesized into a markdown report.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the final report to this file")
	rootCmd.Flags().BoolVar(&dedupe, "dedupe", false, "Skip sources already summarized in an earlier round")
	rootCmd.Flags().IntVar(&maxFollowUps, "max-follow-ups", research.DefaultMaxFollowUps, "Maximum follow-up rounds after the initial one (0-3)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 1, "Queries searched in parallel within a round")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final report")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	// Logs go to stderr so the report on stdout stays clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cmd.Flags().Changed("dedupe") {
		cfg.DedupeURLs = dedupe
	}
	if cmd.Flags().Changed("max-follow-ups") {
		cfg.MaxFollowUps = maxFollowUps
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = concurrency
	}

	if !cmd.Flags().Changed("topic") {
		// Interactive Mode
		fmt.Fprint(cmd.OutOrStdout(), "Enter research topic: ")
		input, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		topic = input
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return research.ErrEmptyTopic
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	engine := stack.NewEngine(logger)
	if !quiet {
		engine.Observer = console.NewObserver(cmd.OutOrStdout())
	}

	report, err := engine.Research(ctx, topic)
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(report.Markdown), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info("Report written", "path", outputPath, "sources", len(report.Sources), "rounds", report.Rounds)
		return nil
	}
	if quiet {
		fmt.Fprintln(cmd.OutOrStdout(), report.Markdown)
	}
	return nil
}
