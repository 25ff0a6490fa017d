package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed textbooks",
		Long: `Retrieve the most relevant passages and, when a generator is configured,
ask the language model to answer using only those passages.

When nothing relevant is indexed the tutor says so instead of guessing.
With generation.provider set to "none" the retrieved passages are printed.`,
		Example: `  tutor ask "Why do leaves change color in autumn?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			eng, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			ans, err := eng.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := a.out(cmd)
			if jsonOutput {
				return out.JSON(ans)
			}
			out.Answer(ans)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
