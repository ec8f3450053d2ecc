package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	// Transport limits.
	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	SendBuffer  int           `mapstructure:"send_buffer"`

	// Session limits.
	MaxSessionIDBytes int `mapstructure:"max_session_id_bytes"`
	MaxSessionPeers   int `mapstructure:"max_session_peers"`

	// Slow-peer policy: "drop" or "kick".
	Backpressure string `mapstructure:"backpressure"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 9001)
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("idle_timeout", "75s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("max_session_id_bytes", 128)
	v.SetDefault("max_session_peers", 64)
	v.SetDefault("backpressure", "drop")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PingPeriod >= cfg.IdleTimeout {
		return nil, fmt.Errorf("ping_period (%s) must be below idle_timeout (%s)", cfg.PingPeriod, cfg.IdleTimeout)
	}
	return &cfg, nil
}
