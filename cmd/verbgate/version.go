package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbgate"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of verbgate",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "verbgate version %s\n", verbgate.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
