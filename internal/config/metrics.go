package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type MetricsConfig struct {
	// Addr is where /metrics is served. Empty disables the endpoint.
	Addr string `env:"METRICS_ADDR, default=:9090"`
}

func NewMetricsConfigFromEnv() (*MetricsConfig, error) {
	var cfg MetricsConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
