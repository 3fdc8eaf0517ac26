package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr     string        `mapstructure:"server_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
}

// Load reads configuration from the optional YAML file at path, layered over
// defaults, with PARLEY_-prefixed environment variables taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server_addr", "localhost:8000")
	v.SetDefault("allowed_origins", []string{"http://localhost:8000"})
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")

	v.SetEnvPrefix("PARLEY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("read limit must be positive")
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping period must be positive")
	}

	return nil
}
