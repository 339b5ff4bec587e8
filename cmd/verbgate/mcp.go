package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbgate"
	"github.com/aretw0/verbgate/internal/cli"
	"github.com/aretw0/verbgate/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts verbgate as an MCP server exposing resolve_utterance and reply_choice.

Supported transports:
- stdio (default): for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Open(options(cmd))
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app, verbgate.Version, mcp.WithLogger(app.Logger))
		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			return srv.ServeStdio()
		case "sse":
			addr, _ := cmd.Flags().GetString("addr")
			baseURL, _ := cmd.Flags().GetString("base-url")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ServeSSE(ctx, addr, baseURL)
		default:
			return fmt.Errorf("unknown transport %q", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", ":8081", "Listen address for sse")
	mcpCmd.Flags().String("base-url", "http://localhost:8081", "Public base URL for sse")
}
