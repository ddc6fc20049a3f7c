package config

import (
	"context"
	"fmt"
	"time"

	"github.com/glizzus/clipster/internal/playback"
	"github.com/sethvargo/go-envconfig"
)

type PlaybackConfig struct {
	IdleTimeoutSeconds    int      `env:"PLAYBACK_IDLE_TIMEOUT_SECONDS, default=900"`
	SignOffClips          []string `env:"PLAYBACK_SIGN_OFF_CLIPS"`
	SkipVotes             int      `env:"PLAYBACK_SKIP_VOTES, default=3"`
	SkipPercentage        int      `env:"PLAYBACK_SKIP_PERCENTAGE, default=33"`
	ConnectTimeoutSeconds int      `env:"PLAYBACK_CONNECT_TIMEOUT_SECONDS, default=10"`
}

func NewPlaybackConfigFromEnv() (*PlaybackConfig, error) {
	var cfg PlaybackConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.IdleTimeoutSeconds < 0 {
		return nil, fmt.Errorf("PLAYBACK_IDLE_TIMEOUT_SECONDS must not be negative, got %d", cfg.IdleTimeoutSeconds)
	}
	if cfg.SkipVotes < 1 {
		return nil, fmt.Errorf("PLAYBACK_SKIP_VOTES must be at least 1, got %d", cfg.SkipVotes)
	}
	if cfg.SkipPercentage < 1 || cfg.SkipPercentage > 100 {
		return nil, fmt.Errorf("PLAYBACK_SKIP_PERCENTAGE must be between 1 and 100, got %d", cfg.SkipPercentage)
	}
	if cfg.ConnectTimeoutSeconds < 1 {
		return nil, fmt.Errorf("PLAYBACK_CONNECT_TIMEOUT_SECONDS must be at least 1, got %d", cfg.ConnectTimeoutSeconds)
	}

	return &cfg, nil
}

// Playback converts the environment record into the orchestrator's config.
// An idle timeout of zero keeps the bot in its channel forever.
func (c *PlaybackConfig) Playback() playback.Config {
	return playback.Config{
		IdleTimeout:      time.Duration(c.IdleTimeoutSeconds) * time.Second,
		SignOffClipPaths: c.SignOffClips,
		Quorum: playback.Quorum{
			Votes:      c.SkipVotes,
			Percentage: c.SkipPercentage,
		},
		ConnectTimeout: time.Duration(c.ConnectTimeoutSeconds) * time.Second,
	}
}
