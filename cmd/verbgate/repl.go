package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/verbgate/internal/cli"
	"github.com/aretw0/verbgate/internal/presentation/tui"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Resolve utterances interactively",
	Long: `Reads one utterance per line. When verbgate asks which verb you meant,
answer with the option number. Type :pending to show the open choice and :quit to exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Open(quiet(cmd))
		if err != nil {
			return err
		}
		defer app.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = "repl-" + uuid.NewString()[:8]
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		rich := !jsonMode && isTerminal()
		if rich {
			snap := app.Policy()
			tui.PrintBanner(cmd.OutOrStdout(), snap.Mode(), snap.Fingerprint())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r := &cli.REPL{
			Gate:      app,
			SessionID: sessionID,
			In:        cmd.InOrStdin(),
			Out:       cmd.OutOrStdout(),
			Renderer:  tui.NewRenderer(rich),
			JSON:      jsonMode,
		}
		return r.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().StringP("session", "s", "", "Session id (random when empty)")
	replCmd.Flags().Bool("json", false, "NDJSON output, one outcome per line")
}
