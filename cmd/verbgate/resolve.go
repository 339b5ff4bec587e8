package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/verbgate/internal/cli"
	"github.com/aretw0/verbgate/internal/presentation/tui"
	"github.com/aretw0/verbgate/internal/sanitize"
	"github.com/aretw0/verbgate/pkg/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <utterance>...",
	Short: "Resolve one utterance and print the outcome",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Open(quiet(cmd))
		if err != nil {
			return err
		}
		defer app.Close()

		utterance, err := sanitize.Input(strings.Join(args, " "))
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		out, err := app.Resolve(cmd.Context(), sessionID, utterance)
		if err != nil {
			return err
		}
		return printOutcome(cmd, out)
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <index>",
	Short: "Answer a session's pending choice",
	Long:  `Answers a pending choice created by an earlier resolve. Needs a shared store (store.backend: redis).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}
		app, err := cli.Open(quiet(cmd))
		if err != nil {
			return err
		}
		defer app.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		choiceID, _ := cmd.Flags().GetString("choice")
		out, err := app.Reply(cmd.Context(), sessionID, index, choiceID)
		if err != nil {
			return err
		}
		return printOutcome(cmd, out)
	},
}

func printOutcome(cmd *cobra.Command, out domain.Outcome) error {
	view := domain.Describe(out)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		text, err := tui.NewRenderer(isTerminal()).Render(view)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	if view.ErrorCode != "" {
		return fmt.Errorf("%s: %s", view.Kind, view.ErrorCode)
	}
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func init() {
	for _, c := range []*cobra.Command{resolveCmd, replyCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringP("session", "s", "cli", "Session id")
		c.Flags().Bool("json", false, "Print the outcome as JSON")
	}
	replyCmd.Flags().String("choice", "", "Id of the choice being answered")
}
