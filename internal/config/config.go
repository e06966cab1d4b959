package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret     string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	GuestTokenTTL time.Duration `mapstructure:"guest_token_ttl" yaml:"guest_token_ttl"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	RoomGracePeriod   time.Duration `mapstructure:"room_grace_period" yaml:"room_grace_period"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "scrumpoker.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "scrumpoker",
		TokenTTL:          10 * time.Hour,
		GuestTokenTTL:     5 * time.Hour,
		HeartbeatInterval: 10 * time.Second,
		RoomGracePeriod:   60 * time.Second,
		LogLevel:          "info",
	}
}
