package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ledger schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.db == nil {
			a.log.Info("memory store has no schema; nothing to migrate")
			return nil
		}
		if err := a.db.Migrate(cmd.Context()); err != nil {
			return err
		}
		a.log.Info("schema migrated")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the vendor catalog (SEED_FILE or the built-in demo vendors)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.seedVendors(cmd.Context())
		return err
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick <runId>",
	Short: "Advance one run by a single tick and print the outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.newService(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.Tick(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, tickCmd)
}
