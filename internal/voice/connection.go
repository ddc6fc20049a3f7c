package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clipster/internal/opus"
	"github.com/glizzus/clipster/internal/playback"
)

// Connection is a playback.Connection backed by a discordgo voice
// connection. At most one stream runs at a time.
type Connection struct {
	vc          *discordgo.VoiceConnection
	sendTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ playback.Connection = (*Connection)(nil)

func newConnection(vc *discordgo.VoiceConnection, sendTimeout time.Duration, logger *slog.Logger) *Connection {
	return &Connection{vc: vc, sendTimeout: sendTimeout, logger: logger}
}

func (c *Connection) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

func (c *Connection) IsConnected() bool {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.Ready
}

// Move switches channels without dropping the connection.
func (c *Connection) Move(ctx context.Context, channelID string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.vc.ChangeChannel(channelID, false, true)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play streams audio on a new goroutine. Any stream still running is
// stopped first. onFinished runs once the stream is over for any reason.
func (c *Connection) Play(audio playback.AudioSource, onFinished func()) error {
	if !c.IsConnected() {
		return playback.ErrNotConnected
	}
	c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer onFinished()
		defer cancel()

		if err := c.vc.Speaking(true); err != nil {
			c.logger.Warn("Failed to set speaking state", "error", err)
		}
		err := opus.Stream(ctx, audio, c.vc.OpusSend, c.sendTimeout)
		if serr := c.vc.Speaking(false); serr != nil {
			c.logger.Debug("Failed to clear speaking state", "error", serr)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Voice stream ended early", "channelID", c.ChannelID(), "error", err)
		}
	}()
	return nil
}

// Stop cancels the running stream and waits for it to wind down. Every
// concurrent caller waits, not just the first.
func (c *Connection) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Connection) Disconnect() error {
	c.Stop()
	return c.vc.Disconnect()
}
