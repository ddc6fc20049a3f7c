package playback

import (
	"context"
	"time"
)

// Permissions reports what the bot may do in a voice channel.
type Permissions struct {
	Connect bool
	Speak   bool
}

// VoiceGateway is the platform side of voice: permission checks, joining
// channels and counting who is listening.
type VoiceGateway interface {
	Permissions(ctx context.Context, guildID, channelID string) (Permissions, error)
	// BotPresent reports whether a session of the bot is already sitting in
	// the channel even though this process holds no connection for the guild.
	BotPresent(ctx context.Context, guildID, channelID string) (bool, error)
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
	// Occupancy counts the bot plus every non-bot member in the channel.
	Occupancy(ctx context.Context, guildID, channelID string) (int, error)
}

// Connection is one live voice connection for a guild.
type Connection interface {
	ChannelID() string
	Move(ctx context.Context, channelID string) error
	// Play starts streaming audio and returns immediately. onFinished is
	// called once, from any goroutine, when the stream ends or is stopped.
	Play(audio AudioSource, onFinished func()) error
	Stop()
	Disconnect() error
	IsConnected() bool
}

// SourceOpener opens a clip by path. It is used for sign-off clips.
type SourceOpener interface {
	OpenPath(ctx context.Context, path string) (AudioSource, error)
}

// Notifier tells whoever submitted a request that it could not be played.
type Notifier interface {
	NotifyFailure(ctx context.Context, guildID string, req *PlayRequest, err error)
}

// Outcome is the terminal state of a request as recorded for auditing.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// PlayRecord is one audited request.
type PlayRecord struct {
	RequestID   string
	GuildID     string
	ChannelID   string
	RequesterID string
	FilePath    string
	Outcome     Outcome
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// AuditSink persists play history. Failures are logged and otherwise ignored.
type AuditSink interface {
	Record(ctx context.Context, record PlayRecord) error
}
