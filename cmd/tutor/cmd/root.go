// Package cmd provides the CLI commands for tutor.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tutor/internal/config"
	"github.com/Aman-CERP/tutor/internal/engine"
	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/logging"
	"github.com/Aman-CERP/tutor/internal/output"
	"github.com/Aman-CERP/tutor/internal/profiling"
	"github.com/Aman-CERP/tutor/internal/ui"
	"github.com/Aman-CERP/tutor/pkg/version"
)

// app holds the state shared by every subcommand of one root command.
type app struct {
	dir     string
	debug   bool
	noColor bool
	profile profiling.Options

	cfg            *config.Config
	session        *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the tutor CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "Answer questions from your own textbooks",
		Long: `tutor indexes a directory of plain-text, Markdown and PDF textbooks and
answers questions using only the passages it retrieves from them.

  tutor index           build or refresh the index
  tutor ask "question"  answer from the indexed books
  tutor search "query"  show the passages that would be used

Re-running index only re-embeds files that changed.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("tutor version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Project directory (where .tutor.yaml lives)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to the log file")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", ui.DetectNoColor(), "Disable colored output")
	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = a.before
	cmd.PersistentPostRunE = a.after

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newAskCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// before loads configuration, then starts logging and profiling.
func (a *app) before(_ *cobra.Command, _ []string) error {
	root, err := config.FindProjectRoot(a.dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if a.debug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Fall back to warnings on stderr rather than refusing to run.
		fallback := logging.DefaultConfig()
		fallback.Level = "warn"
		logger, cleanup, _ = logging.Setup(fallback)
		logger.Warn("file logging unavailable", slog.String("error", err.Error()))
	}
	a.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command start",
		slog.String("version", version.Short()),
		slog.String("project_root", root))

	if a.profile.Enabled() {
		a.session, err = profiling.Start(a.profile)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) after(_ *cobra.Command, _ []string) error {
	var err error
	if a.session != nil {
		err = a.session.Stop()
		a.session = nil
	}
	if a.loggingCleanup != nil {
		a.loggingCleanup()
		a.loggingCleanup = nil
	}
	return err
}

// finish records a failed command in the log and releases what before set up.
// Post-run hooks are skipped when a command fails, so callers of Execute use
// this instead.
func (a *app) finish(root *cobra.Command, err error) {
	if err != nil && a.loggingCleanup != nil {
		slog.Error("command failed",
			slog.String("error", err.Error()),
			slog.String("code", tutorerrors.GetCode(err)),
			slog.String("category", string(tutorerrors.GetCategory(err))))
	}
	_ = a.after(root, nil)
}

// openEngine builds an engine from the loaded configuration.
func (a *app) openEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, error) {
	if a.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return engine.New(ctx, a.cfg, opts...)
}

// out returns a styled writer for cmd's stdout.
func (a *app) out(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), a.noColor)
}

// signalContext cancels on Ctrl+C or SIGTERM so builds stop between files.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	a := &app{}
	root := newRootCmd(a)
	err := root.Execute()
	a.finish(root, err)
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), tutorerrors.FormatForCLI(err))
		return 1
	}
	return 0
}
