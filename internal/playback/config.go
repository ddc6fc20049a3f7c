package playback

import "time"

// Config is shared by every guild and never changes after construction.
type Config struct {
	// IdleTimeout is how long a connection may sit without a new request
	// before the bot leaves. Zero disables idle disconnects.
	IdleTimeout      time.Duration
	SignOffClipPaths []string
	Quorum           Quorum
	ConnectTimeout   time.Duration
}

const (
	DefaultIdleTimeout    = 15 * time.Minute
	DefaultConnectTimeout = 10 * time.Second
	DefaultSkipVotes      = 3
	DefaultSkipPercentage = 33
)

func DefaultConfig() Config {
	return Config{
		IdleTimeout:    DefaultIdleTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		Quorum: Quorum{
			Votes:      DefaultSkipVotes,
			Percentage: DefaultSkipPercentage,
		},
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Quorum.Votes <= 0 {
		c.Quorum.Votes = DefaultSkipVotes
	}
	if c.Quorum.Percentage <= 0 {
		c.Quorum.Percentage = DefaultSkipPercentage
	}
	c.SignOffClipPaths = append([]string(nil), c.SignOffClipPaths...)
	return c
}
