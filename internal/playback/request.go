package playback

import (
	"context"
	"time"
)

// AudioSource is an opened clip ready to be streamed as opus frames.
// ReadFrame returns io.EOF once the clip is exhausted.
type AudioSource interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// PlayRequest asks for one clip to be played in a voice channel.
type PlayRequest struct {
	ID string

	// RequesterID is empty for requests the bot issues itself.
	RequesterID string
	ChannelID   string
	Audio       AudioSource
	FilePath    string

	// Origin is the text channel the request came from, if any.
	// Failures are reported there.
	Origin string

	OnComplete Completion

	// SignOff marks the clip played right before an idle disconnect.
	// Activating it does not count as guild activity.
	SignOff bool

	queuedAt time.Time
}

// Result describes how a request ended.
type Result struct {
	RequestID string
	// Skipped is true when playback was interrupted by a skip or disconnect.
	Skipped  bool
	Err      error
	Started  time.Time
	Finished time.Time
}

// Completion is invoked exactly once per request, after it stops playing and
// before the next request is dequeued.
type Completion interface {
	Complete(ctx context.Context, result Result) error
}

// CompletionFunc runs inline on the playback loop.
type CompletionFunc func(result Result)

func (f CompletionFunc) Complete(_ context.Context, result Result) error {
	f(result)
	return nil
}

var _ Completion = CompletionFunc(nil)

// AsyncCompletion runs on its own goroutine. The loop waits for it to return
// or for ctx to be done, whichever happens first.
type AsyncCompletion func(ctx context.Context, result Result) error

func (f AsyncCompletion) Complete(ctx context.Context, result Result) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- f(ctx, result)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Completion = AsyncCompletion(nil)
