package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pkgdex",
	Short: "A local, searchable mirror of the PyPI namespace",
	Long: `pkgdex maintains a local full-text index of PyPI package names,
enriched with star counts scraped from each project's GitHub page,
and answers ranked, paginated name searches over it.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pkgdex.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("db-dir", ".", "directory holding the package database")
	rootCmd.PersistentFlags().String("registry-url", "https://pypi.org", "base URL of the package registry")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("database_dir", rootCmd.PersistentFlags().Lookup("db-dir"))
	viper.BindPFlag("registry_url", rootCmd.PersistentFlags().Lookup("registry-url"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory and current directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pkgdex")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("PKGDEX")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
