package playback

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotPlaying is returned when a skip targets a guild with nothing playing.
	ErrNotPlaying = errors.New("nothing is playing")
	// ErrAlreadyVoted is returned when a member votes twice on the same request.
	ErrAlreadyVoted = errors.New("already voted to skip")
	// ErrNotConnected is returned when disconnecting a guild with no voice connection.
	ErrNotConnected = errors.New("not connected to a voice channel")
	// ErrClosed is returned once the orchestrator has been closed.
	ErrClosed = errors.New("orchestrator is closed")
)

// InvalidAudioSourceError rejects a request before it is queued.
type InvalidAudioSourceError struct {
	Path   string
	Reason string
}

func (e *InvalidAudioSourceError) Error() string {
	if e.Path == "" {
		return "invalid audio source: " + e.Reason
	}
	return fmt.Sprintf("invalid audio source %q: %s", e.Path, e.Reason)
}

var _ error = (*InvalidAudioSourceError)(nil)

// PermissionError means the bot lacks connect or speak in the target channel.
type PermissionError struct {
	ChannelID  string
	CanConnect bool
	CanSpeak   bool
}

func (e *PermissionError) Error() string {
	var missing []string
	if !e.CanConnect {
		missing = append(missing, "connect")
	}
	if !e.CanSpeak {
		missing = append(missing, "speak")
	}
	return fmt.Sprintf("missing %s permission in channel %s", strings.Join(missing, " and "), e.ChannelID)
}

var _ error = (*PermissionError)(nil)

// AlreadyPresentError means an older session of the bot still occupies the
// target channel. Joining it again leaves the connection unable to play.
type AlreadyPresentError struct {
	ChannelID string
}

func (e *AlreadyPresentError) Error() string {
	return fmt.Sprintf("a previous bot session is still in channel %s", e.ChannelID)
}

var _ error = (*AlreadyPresentError)(nil)

// ConnectionTimeoutError means joining or moving to a channel took too long.
type ConnectionTimeoutError struct {
	ChannelID string
	Err       error
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("timed out connecting to channel %s: %v", e.ChannelID, e.Err)
}

func (e *ConnectionTimeoutError) Unwrap() error {
	return e.Err
}

var _ error = (*ConnectionTimeoutError)(nil)
