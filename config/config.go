package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all relay settings. Values come from the environment;
// command line flags in cmd may override them.
type Config struct {
	WSListenAddr  string        `env:"RELAY_WS_LISTEN_ADDR" envDefault:":8888"`
	APIListenAddr string        `env:"RELAY_API_LISTEN_ADDR" envDefault:":8080"`
	LogLevel      string        `env:"RELAY_LOG_LEVEL" envDefault:"debug"`
	DefaultRoom   string        `env:"RELAY_DEFAULT_ROOM" envDefault:"default-room"`
	SendTimeout   time.Duration `env:"RELAY_SEND_TIMEOUT" envDefault:"1s"`
	SendBuffer    int           `env:"RELAY_SEND_BUFFER" envDefault:"16"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
