package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

const (
	ClipStoreLocal = "local"
	ClipStoreMinio = "minio"
)

type ClipsConfig struct {
	// Dir holds one sub-directory per clip group, each with a manifest.json.
	Dir string `env:"CLIPS_DIR, default=clips"`
	// Store is where clip audio is read from: local or minio.
	Store string `env:"CLIPS_STORE, default=local"`
}

func NewClipsConfigFromEnv() (*ClipsConfig, error) {
	var cfg ClipsConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Store != ClipStoreLocal && cfg.Store != ClipStoreMinio {
		return nil, fmt.Errorf("CLIPS_STORE must be %q or %q, got %q", ClipStoreLocal, ClipStoreMinio, cfg.Store)
	}

	return &cfg, nil
}
