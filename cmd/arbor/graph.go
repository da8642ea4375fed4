package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <form-id>",
	Short: "Export the service tree visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the service tree of a form.
With --action, the action is applied to a copy of the tree and the nodes it
adds or changes are highlighted. Nothing is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		form, err := app.Service.GetForm(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}

		tree, overlay := form.Data.ServiceTree, (*graph.Overlay)(nil)
		if path, _ := cmd.Flags().GetString("action"); path != "" {
			raw, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			action, err := editor.UnmarshalAction(raw)
			if err != nil {
				return err
			}
			if err := editor.Check(form.Data, action); err != nil {
				return err
			}
			next := editor.Reduce(form.Data, action)
			tree = next.ServiceTree
			if diff := domain.Diff(&form.Data, next); diff != nil {
				overlay = graph.OverlayFromDiff(*diff)
			}
		}

		// Generate and print Mermaid graph
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(tree, overlay))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("action", "", "Preview an editor action from a JSON file ('-' for stdin)")
}
