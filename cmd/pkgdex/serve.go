package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pkgdex/pkgdex/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API over HTTP",
	Long: `Serve exposes the ranked name search as an HTTP API:

  GET /api/search?q=<query>&p=<page>

A search response is {"current_page": N, "has_more": bool, "packages": [...]},
or [] when the query matches nothing. Internal failures map to 500.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			viper.Set("listen_addr", listen)
		}

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := application.Serve(ctx); err != nil {
			return fmt.Errorf("serve failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default :8090)")
	rootCmd.AddCommand(serveCmd)
}
