package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tutor/internal/config"
	"github.com/Aman-CERP/tutor/internal/embed"
	"github.com/Aman-CERP/tutor/internal/extract"
	"github.com/Aman-CERP/tutor/internal/ollama"
	"github.com/Aman-CERP/tutor/internal/preflight"
	"github.com/Aman-CERP/tutor/pkg/version"
)

// checkTimeout bounds each backend reachability check.
const checkTimeout = 3 * time.Second

// errChecksFailed is returned by doctor when a required check fails.
var errChecksFailed = errors.New("system check failed")

func newDoctorCmd(a *app) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run the checks that index performs on first use:

  - Source directory exists
  - Free disk space under the data directory (100 MB minimum)
  - Write permission for the data directory
  - Open file limit
  - pdftotext availability (PDFs are skipped without it)
  - Embedding and generation backends are reachable

The accepted file extensions are listed after the checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			out := a.out(cmd)
			checker := preflight.New(preflight.WithVerbose(verbose), preflight.WithOutput(out))
			results := checker.RunAll(ctx, checkTarget(a.cfg))

			if jsonOutput {
				report := doctorReport{
					Status:  checker.SummaryStatus(results),
					Checks:  results,
					Formats: extract.SupportedExtensions(),
				}
				if err := out.JSON(report); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
				out.KeyValue("Formats", strings.Join(extract.SupportedExtensions(), " "))
				if m, err := preflight.ReadMarker(a.cfg.Paths.DataDir); err == nil {
					out.KeyValue("Last passed", m.PassedAt.Local().Format("2006-01-02 15:04")+" ("+m.Version+")")
				}
			}

			if checker.HasCriticalFailures(results) {
				return errChecksFailed
			}
			if err := preflight.MarkPassed(a.cfg.Paths.DataDir, version.Short()); err != nil {
				out.Warningf("could not record passed checks: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks too")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type doctorReport struct {
	Status  string                  `json:"status"`
	Checks  []preflight.CheckResult `json:"checks"`
	Formats []string                `json:"formats"`
}

// checkTarget describes the directories and backends cfg depends on.
func checkTarget(cfg *config.Config) preflight.Target {
	t := preflight.Target{
		SourceDir: cfg.Paths.SourceDir,
		DataDir:   cfg.Paths.DataDir,
	}

	if strings.EqualFold(cfg.Embeddings.Provider, string(embed.ProviderOllama)) {
		t.Backends = append(t.Backends, preflight.Backend{
			Name:      "embedder",
			Model:     cfg.Embeddings.Model,
			Required:  true,
			Hint:      fmt.Sprintf("Start Ollama and run 'ollama pull %s', or set embeddings.provider: static", cfg.Embeddings.Model),
			Available: ollamaAvailable(cfg.Embeddings.OllamaHost, cfg.Embeddings.Model),
		})
	} else {
		t.Backends = append(t.Backends, preflight.Backend{
			Name:     "embedder",
			Model:    embed.StaticModelName,
			Required: true,
		})
	}

	if strings.EqualFold(cfg.Generation.Provider, "ollama") {
		host := cfg.Generation.OllamaHost
		if host == "" {
			host = cfg.Embeddings.OllamaHost
		}
		t.Backends = append(t.Backends, preflight.Backend{
			Name:      "generator",
			Model:     cfg.Generation.Model,
			Hint:      fmt.Sprintf("Run 'ollama pull %s'. Without it ask prints passages only", cfg.Generation.Model),
			Available: ollamaAvailable(host, cfg.Generation.Model),
		})
	}
	return t
}

func ollamaAvailable(host, model string) func(context.Context) bool {
	return func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		client := ollama.NewClient(host)
		defer client.Close()
		_, ok, err := client.FindModel(ctx, model)
		return err == nil && ok
	}
}
