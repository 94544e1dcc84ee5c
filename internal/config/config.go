package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pkgdex/pkgdex/internal/domain"
)

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (PKGDEX_*)
// 3. Bound CLI flags
func Load() (*domain.Config, error) {
	cfg := &domain.Config{
		DatabaseDir:       viper.GetString("database_dir"),
		RegistryURL:       viper.GetString("registry_url"),
		ListenAddr:        viper.GetString("listen_addr"),
		MaxConns:          viper.GetInt("max_conns"),
		LogLevel:          viper.GetString("log_level"),
		BootstrapSlot:     viper.GetInt("bootstrap_slot"),
		DiscordWebhookURL: viper.GetString("discord_webhook_url"),
	}

	if cfg.DatabaseDir == "" {
		cfg.DatabaseDir = "."
	}
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = "https://pypi.org"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 256
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.BootstrapSlot < 0 || cfg.BootstrapSlot > 31 {
		return nil, fmt.Errorf("invalid bootstrap_slot: %d (must be 0 for the current day, or a day of month 1-31)", cfg.BootstrapSlot)
	}

	return cfg, nil
}
