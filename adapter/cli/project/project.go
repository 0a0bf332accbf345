package project

import (
	"github.com/spf13/cobra"
)

// Cmd is the project command group
var Cmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  `Create and list projects, move them through stages and track their status history.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(stageCmd)
	Cmd.AddCommand(specialCmd)
	Cmd.AddCommand(historyCmd)
	Cmd.AddCommand(gateCmd)
}
