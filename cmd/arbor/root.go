package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor builds and serves booking flows",
	Long: `Arbor manages booking flow forms: a tree of services and questions that
customers walk through to book an appointment. It serves the editor API,
computes availability from the schedule provider and keeps employees in sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to the YAML configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("org", os.Getenv(config.EnvPrefix+"ORGANIZATION"), "Organization the command acts on")
}

// openApp loads the configuration named by the flags and wires an App.
// The caller must close it.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(cmd.Context(), cfg, logger)
}

func organization(cmd *cobra.Command) (string, error) {
	org, _ := cmd.Flags().GetString("org")
	if org == "" {
		return "", errors.New("an organization is required: pass --org or set " + config.EnvPrefix + "ORGANIZATION")
	}
	return org, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printMarkdown renders md with glamour, styled only on a terminal.
func printMarkdown(cmd *cobra.Command, md string) error {
	out := cmd.OutOrStdout()
	render, err := tui.NewRenderer(isTerminal(out))
	if err != nil {
		return err
	}
	rendered, err := render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
