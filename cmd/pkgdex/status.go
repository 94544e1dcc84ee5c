package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pkgdex/pkgdex/internal/app"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the per-shard bootstrap state as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		states, err := application.ShardStates(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load shard states: %w", err)
		}

		if len(states) == 0 {
			fmt.Println("no shards processed yet")
			return nil
		}

		return yaml.NewEncoder(os.Stdout).Encode(states)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
