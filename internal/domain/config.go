package domain

type Config struct {
	DatabaseDir string `toml:"database_dir" mapstructure:"database_dir"`
	RegistryURL string `toml:"registry_url" mapstructure:"registry_url"`
	ListenAddr  string `toml:"listen_addr" mapstructure:"listen_addr"`
	MaxConns    int    `toml:"max_conns" mapstructure:"max_conns"`
	LogLevel    string `toml:"log_level" mapstructure:"log_level"`

	// DiscordWebhookURL, when set, receives a notification after each
	// bootstrap run.
	DiscordWebhookURL string `toml:"discord_webhook_url" mapstructure:"discord_webhook_url"`

	// BootstrapSlot pins the day-of-month slice of shards a bootstrap run
	// checks. 0 means use the actual current day.
	BootstrapSlot int `toml:"bootstrap_slot" mapstructure:"bootstrap_slot"`
}
