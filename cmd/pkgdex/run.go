package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pkgdex/pkgdex/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one incremental bootstrap pass",
	Long: `Run fetches the full remote package name list and brings the local
name index up to date for the shards due today.

The namespace is sharded by first character, and a full check is spread
across the days of the current month; each shard is only re-processed
when its content digest changed since the last pass. The very first run
processes the entire namespace.

The day slot can be pinned via --slot or bootstrap_slot in config; the
default (0) uses the actual current day of month.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if slot, _ := cmd.Flags().GetInt("slot"); slot != 0 {
			viper.Set("bootstrap_slot", slot)
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		if err := application.RunBootstrap(cmd.Context()); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}

		return nil
	},
}

func init() {
	runCmd.Flags().Int("slot", 0, "pin the day-of-month slot to process (0 = current day)")
	rootCmd.AddCommand(runCmd)
}
