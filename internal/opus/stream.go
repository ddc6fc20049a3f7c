package opus

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrSendTimeout means the voice connection stopped draining frames.
var ErrSendTimeout = errors.New("opus: voice connection send timeout")

// DefaultSendTimeout bounds how long a single frame may wait for the
// voice connection.
const DefaultSendTimeout = time.Minute

// FrameSource yields raw Opus frames until io.EOF.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// Stream sends frames from source into out until the clip ends, ctx is done
// or out stops accepting frames for longer than sendTimeout. It returns nil
// once the clip has been sent in full. A clip truncated mid-frame counts as
// finished.
func Stream(ctx context.Context, source FrameSource, out chan<- []byte, sendTimeout time.Duration) error {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	for {
		frame, err := source.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		timer.Reset(sendTimeout)
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrSendTimeout
		}
	}
}
