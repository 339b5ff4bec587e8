package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/verbgate"
	"github.com/aretw0/verbgate/internal/cli"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the verb policy",
}

var policyCheckCmd = &cobra.Command{
	Use:   "check [verb]...",
	Short: "Compile the policy and evaluate verbs against it",
	Long:  `Prints the policy mode and fingerprint, then allow or deny for each verb. Exits non-zero if any verb is denied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := verbgate.LoadConfig(options(cmd).ConfigPath)
		if err != nil {
			return err
		}
		return cli.CheckPolicy(cfg.Policy, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyCheckCmd)
}
