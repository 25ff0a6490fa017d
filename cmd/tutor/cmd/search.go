package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		topK       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the passages retrieved for a query",
		Long: `Embed the query, rank indexed passages by similarity and print those that
fit in the configured context budget. No answer is generated.`,
		Example: `  tutor search "what is osmosis"
  tutor search --top-k 10 --json "photosynthesis"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			eng, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			res, err := eng.Search(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			out := a.out(cmd)
			if jsonOutput {
				return out.JSON(res)
			}
			out.Matches(res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of candidates to retrieve (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
