package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models [id]",
		Short: "List available models or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				model, err := client.GetModel(ctx, args[0])
				if err != nil {
					return fmt.Errorf("get model %s: %w", args[0], err)
				}
				fmt.Fprintf(out, "id:       %s\n", model.ID())
				fmt.Fprintf(out, "owned_by: %s\n", model.OwnedBy())
				if created := model.Created(); created > 0 {
					fmt.Fprintf(out, "created:  %s\n", time.Unix(created, 0).UTC().Format(time.RFC3339))
				}
				return nil
			}

			models, err := client.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOWNED BY")
			for _, model := range models {
				fmt.Fprintf(tw, "%s\t%s\n", model.ID(), model.OwnedBy())
			}
			return tw.Flush()
		},
	}
}
