package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var availabilityCmd = &cobra.Command{
	Use:   "availability <form-id> <service-id>",
	Short: "Show the free slots of a service for one month",
	Args:  cobra.ExactArgs(2),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		monthFlag, _ := cmd.Flags().GetString("month")
		month := time.Now()
		if monthFlag != "" {
			var err error
			if month, err = time.Parse("2006-01", monthFlag); err != nil {
				return fmt.Errorf("invalid --month %q, want YYYY-MM", monthFlag)
			}
		}
		res, err := app.Service.Availability(cmd.Context(), org, arbor.AvailabilityQuery{
			FormID:    args[0],
			ServiceID: args[1],
			Year:      month.Year(),
			Month:     month.Month(),
		})
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		return printMarkdown(cmd, tui.AvailabilityMarkdown(res))
	}),
}

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Manage the employees that can be booked",
}

var employeesListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List employees",
	Args:    cobra.NoArgs,
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		staff, err := app.Service.ListEmployees(cmd.Context(), org)
		if err != nil {
			return err
		}
		return printMarkdown(cmd, tui.EmployeesMarkdown(staff))
	}),
}

var employeesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the employee list from the schedule provider",
	Args:  cobra.NoArgs,
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		rep, err := app.Service.SyncEmployees(cmd.Context(), org)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %s: %d created, %d updated, %d deactivated\n",
			rep.OrganizationID, rep.Created, rep.Updated, rep.Deactivated)
		return nil
	}),
}

var employeesToggleCmd = &cobra.Command{
	Use:   "toggle <employee-id>",
	Short: "Flip whether an employee can be booked",
	Args:  cobra.ExactArgs(1),
	RunE: withOrg(func(cmd *cobra.Command, app *cli.App, org string, args []string) error {
		e, err := app.Service.ToggleEmployee(cmd.Context(), org, args[0])
		if err != nil {
			return err
		}
		state := "inactive"
		if e.Active {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Employee %s is now %s\n", e.ID, state)
		return nil
	}),
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the form templates of the catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close(context.Background())

		templates, err := app.Service.Templates(cmd.Context())
		if err != nil {
			return err
		}
		return printMarkdown(cmd, tui.TemplatesMarkdown(templates))
	},
}

func init() {
	rootCmd.AddCommand(availabilityCmd, employeesCmd, templatesCmd)
	employeesCmd.AddCommand(employeesListCmd, employeesSyncCmd, employeesToggleCmd)

	availabilityCmd.Flags().StringP("month", "m", "", "Month to compute, as YYYY-MM (default: current month)")
	availabilityCmd.Flags().Bool("json", false, "Print the result as JSON")
}
