package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbgate/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "verbgate",
	Short: "verbgate governs how requests become executable DSL",
	Long: `verbgate resolves free-form requests into DSL for allowed verbs only.
Every generated block is checked against the semantic registry before it is staged.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the verbgate YAML configuration")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON on stderr")
}

func options(cmd *cobra.Command) cli.Options {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	jsonLogs, _ := cmd.Flags().GetBool("log-json")
	return cli.Options{ConfigPath: path, Debug: debug, JSONLogs: jsonLogs}
}

func quiet(cmd *cobra.Command) cli.Options {
	opts := options(cmd)
	opts.Quiet = true
	return opts
}
