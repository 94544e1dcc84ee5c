package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pkgdex/pkgdex/internal/app"
)

var searchCmd = &cobra.Command{
	Use:   "search <query> [page]",
	Short: "Run a single search against the local index",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		page := 0
		if len(args) == 2 {
			if parsed, err := strconv.Atoi(args[1]); err == nil {
				page = parsed
			}
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		result, err := application.Search(cmd.Context(), args[0], page)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if result == nil {
			return enc.Encode([]struct{}{})
		}
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
