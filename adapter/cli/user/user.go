// Package user provides the user registry commands.
package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slate/adapter/cli"
)

// Cmd is the user command group
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users who may change project status",
}

var addCmd = &cobra.Command{
	Use:   "add [email] [name]",
	Short: "Register a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		u, err := app.Users.Register(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User registered: %s (%s)\n", u.ID(), u.Email())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		users, err := app.Users.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, u := range users {
			marker := " "
			if u.ID() == app.CurrentUserID {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s  %-30s %s\n", marker, u.ID(), u.Email(), u.Name())
		}
		return nil
	},
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(listCmd)
}
