package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/spf13/cobra"
)

var formCmd = &cobra.Command{
	Use:     "form",
	Aliases: []string{"forms"},
	Short:   "Manage the booking flow forms of an organization",
}

var formListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List forms",
	Args:    cobra.NoArgs,
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		deleted, _ := cmd.Flags().GetBool("deleted")
		list := app.Service.ListForms
		if deleted {
			list = app.Service.ListDeletedForms
		}
		forms, err := list(cmd.Context(), org)
		if err != nil {
			return err
		}
		return printMarkdown(cmd, tui.FormListMarkdown(forms))
	}),
}

var formShowCmd = &cobra.Command{
	Use:   "show <form-id>",
	Short: "Show the settings and service tree of a form",
	Args:  cobra.ExactArgs(1),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		form, err := app.Service.GetForm(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), form)
		}
		return printMarkdown(cmd, tui.FormMarkdown(form))
	}),
}

var formCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a form, optionally from a template",
	Args:  cobra.ExactArgs(1),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		tmpl, _ := cmd.Flags().GetString("template")
		form, err := app.Service.CreateForm(cmd.Context(), org, arbor.CreateFormInput{InternalName: args[0], TemplateID: tmpl})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), form.ID)
		return nil
	}),
}

var formDeleteCmd = &cobra.Command{
	Use:     "rm <form-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a form; it can be restored until the restore window closes",
	Args:    cobra.ExactArgs(1),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		if err := app.Service.DeleteForm(cmd.Context(), org, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Form %s deleted\n", args[0])
		return nil
	}),
}

var formRestoreCmd = &cobra.Command{
	Use:   "restore <form-id>",
	Short: "Restore a deleted form",
	Args:  cobra.ExactArgs(1),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		if _, err := app.Service.RestoreForm(cmd.Context(), org, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Form %s restored\n", args[0])
		return nil
	}),
}

var formApplyCmd = &cobra.Command{
	Use:   "apply <form-id> <action.json|->",
	Short: "Apply an editor action to a form and save it",
	Long: `Reads an editor action envelope ({"type": "ADD_NODE", "payload": {...}})
from a file, or from stdin when the path is '-', applies it to the draft of
the form and saves the result.`,
	Args: cobra.ExactArgs(2),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		raw, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		action, err := editor.UnmarshalAction(raw)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := app.Service.Dispatch(ctx, org, args[0], action); err != nil {
			return err
		}
		snap, err := app.Service.SaveDraft(ctx, org, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %s to form %s (%s)\n", action.Type(), args[0], snap.Status)
		return nil
	}),
}

var formValidateCmd = &cobra.Command{
	Use:   "validate [form-id]",
	Short: "Check a form for consistency",
	Long: `Validates a stored form, or the form data in the file given with --file,
and reports every problem found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := validationTarget(cmd, args)
		if err != nil {
			return err
		}
		res := schema.Validate(data)
		if !res.IsValid {
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", e)
			}
			return fmt.Errorf("%w: %d problem(s) found", domain.ErrInvalidInput, len(res.Errors))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Form is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(formCmd)
	formCmd.AddCommand(formListCmd, formShowCmd, formCreateCmd, formDeleteCmd, formRestoreCmd, formApplyCmd, formValidateCmd)

	formListCmd.Flags().Bool("deleted", false, "List deleted forms that can still be restored")
	formShowCmd.Flags().Bool("json", false, "Print the form as JSON")
	formCreateCmd.Flags().StringP("template", "t", "", "Template to seed the form from")
	formValidateCmd.Flags().StringP("file", "f", "", "Validate form data from a JSON file ('-' for stdin)")
}

// validationTarget returns the form data named by the arguments: a file
// when --file is set, a stored form otherwise.
func validationTarget(cmd *cobra.Command, args []string) (domain.BookingFlowData, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		raw, err := readInput(cmd, path)
		if err != nil {
			return domain.BookingFlowData{}, err
		}
		var data domain.BookingFlowData
		if err := json.Unmarshal(raw, &data); err != nil {
			return data, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return data, nil
	}
	if len(args) == 0 {
		return domain.BookingFlowData{}, fmt.Errorf("a form ID or --file is required")
	}

	var data domain.BookingFlowData
	err := withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		form, err := app.Service.GetForm(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}
		data = form.Data
		return nil
	})(cmd, args)
	return data, err
}

type appRunFunc func(cmd *cobra.Command, app *cli.App, org string, args []string) error

// withOrg opens the App for a command acting on one organization and
// closes it, flushing drafts, when the command returns.
func withOrg(fn appRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		org, err := organization(cmd)
		if err != nil {
			return err
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := app.Close(context.Background()); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, app, org, args)
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
