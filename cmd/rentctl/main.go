package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	env := &environment{}

	rootCmd := &cobra.Command{
		Use:   "rentctl",
		Short: "Rent ledger command line tool",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.close()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&env.envFile, "env-file", ".env", "Environment file to load")

	rootCmd.AddCommand(
		MigrateCmd(env),
		TenantsCmd(env),
		RentsCmd(env),
		PayCmd(env),
		ImportCmd(env),
		UploadCmd(env),
		ExportCmd(env),
		SyncNotionCmd(env),
	)
	return rootCmd
}
