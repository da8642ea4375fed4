package main

import (
	"context"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the form editor API over HTTP, together with the scheduled
employee sync and the purge of expired deleted forms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		cmd.SetContext(ctx)

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			app.Config.Server.Addr = addr
		}
		defer func() {
			if err := app.Close(context.Background()); err != nil {
				app.Logger.Error("failed to close resources", "err", err)
			}
		}()

		if isTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout)
		}
		return cli.Serve(ctx, app)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (overrides server.addr)")
}
