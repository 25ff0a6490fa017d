package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tutor/internal/engine"
	"github.com/Aman-CERP/tutor/internal/preflight"
	"github.com/Aman-CERP/tutor/internal/ui"
	"github.com/Aman-CERP/tutor/internal/watcher"
	"github.com/Aman-CERP/tutor/pkg/version"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		noTUI     bool
		force     bool
		watch     bool
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the textbook index",
		Long: `Scan the source directory, embed new or changed files and publish a new
index generation.

Unchanged files reuse their cached embeddings. Files that cannot be read or
embedded are reported and skipped without failing the build.

Use --force to discard all cached data and re-embed everything.
Use --watch to keep running and rebuild whenever a textbook changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			return runIndex(ctx, cmd, a, indexFlags{noTUI: noTUI, force: force, watch: watch, skipCheck: skipCheck})
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index data and rebuild from scratch")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild when files in the source directory change")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the first-run system checks")

	return cmd
}

type indexFlags struct {
	noTUI, force, watch, skipCheck bool
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, flags indexFlags) error {
	cfg := a.cfg

	if !flags.skipCheck && preflight.NeedsCheck(cfg.Paths.DataDir, version.Short()) {
		checker := preflight.New(preflight.WithOutput(a.out(cmd)))
		results := checker.RunAll(ctx, checkTarget(cfg))
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("system check failed, run 'tutor doctor' for details")
		}
		if err := preflight.MarkPassed(cfg.Paths.DataDir, version.Short()); err != nil {
			slog.Debug("failed to record passed checks", slog.String("error", err.Error()))
		}
	}

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if flags.force {
		if err := eng.Reset(ctx); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		_ = preflight.ClearMarker(cfg.Paths.DataDir)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cleared existing index data, starting fresh...")
		slog.Info("index_force_clear", slog.String("data_dir", cfg.Paths.DataDir))
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(flags.noTUI || flags.watch),
		ui.WithNoColor(a.noColor),
		ui.WithSourceDir(cfg.Paths.SourceDir)))
	if err := buildOnce(ctx, eng, renderer); err != nil {
		return err
	}

	if !flags.watch {
		return nil
	}

	opts := watcher.Options{
		ExcludePatterns: cfg.Paths.Exclude,
		IgnoreDirs:      []string{cfg.Paths.DataDir},
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n", cfg.Paths.SourceDir)
	return watcher.Run(ctx, cfg.Paths.SourceDir, opts, func(ctx context.Context, batch []watcher.FileEvent) error {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%d change(s) detected, rebuilding...\n", len(batch))
		return buildOnce(ctx, eng, ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout())))
	})
}

// buildOnce runs a single build with renderer attached for its duration.
func buildOnce(ctx context.Context, eng *engine.Engine, renderer ui.Renderer) error {
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	eng.SetRenderer(renderer)
	defer eng.SetRenderer(nil)

	_, err := eng.Build(ctx)
	if stopErr := renderer.Stop(); stopErr != nil {
		slog.Debug("renderer stop failed", slog.String("error", stopErr.Error()))
	}
	return err
}
