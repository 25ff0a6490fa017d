package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/tutor/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and backend availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			eng, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			info, err := eng.Status(ctx)
			if err != nil {
				return err
			}
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), a.noColor)
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
