package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/verbgate/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage pending choices",
	Long:  `List, inspect and remove the pending choices held for sessions.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions with a pending choice",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Open(quiet(cmd))
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ListSessions(cmd.Context(), app.Sessions, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Show a session's pending choice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Open(quiet(cmd))
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.InspectSession(cmd.Context(), app.Sessions, args[0], cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Drop the pending choice of one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Open(quiet(cmd))
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.RemoveSessions(cmd.Context(), app.Sessions, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
