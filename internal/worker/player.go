package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/schedule"
)

var ErrUnknownClip = errors.New("unknown clip")

type Submitter interface {
	Submit(guildID string, req *playback.PlayRequest) error
}

type ClipSource interface {
	Lookup(name string) (catalog.Clip, bool)
	Open(ctx context.Context, clip catalog.Clip) (playback.AudioSource, error)
}

// ChannelPicker chooses a voice channel for jobs that do not name one.
type ChannelPicker interface {
	BusiestChannel(guildID string) (string, error)
}

type PlayerDependencies struct {
	Submitter Submitter
	Clips     ClipSource
	Channels  ChannelPicker
	// Blocklist is optional.
	Blocklist Blocklist
	Logger    *slog.Logger
}

// Player turns clip jobs into play requests once their time comes.
type Player struct {
	deps PlayerDependencies
	wg   sync.WaitGroup
}

var _ JobHandler = (*Player)(nil)

func NewPlayer(deps PlayerDependencies) *Player {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Player{deps: deps}
}

func jobAttrs(job ClipJob) []any {
	return []any{
		"jobID", job.ID,
		"guildID", job.GuildID,
		"channelID", job.ChannelID,
		"clip", job.ClipName,
		"requestedBy", job.RequestedBy,
		"runAt", job.RunAt.Format(time.DateTime),
	}
}

// HandleJob defers job until its run time and returns right away. Jobs
// still waiting when ctx ends are dropped.
func (p *Player) HandleJob(ctx context.Context, job ClipJob) error {
	p.deps.Logger.Debug("Scheduling clip job", jobAttrs(job)...)

	p.wg.Add(1)
	done := schedule.RunAt(ctx, job.RunAt, func(ctx context.Context) {
		if err := p.PlayNow(ctx, job); err != nil {
			p.deps.Logger.Error("Failed to play clip job", append(jobAttrs(job), "error", err)...)
		}
	})
	go func() {
		<-done
		p.wg.Done()
	}()
	return nil
}

// Wait blocks until every scheduled job has run or been dropped.
func (p *Player) Wait() {
	p.wg.Wait()
}

// PlayNow submits job immediately. Blocklisted clips are skipped without
// an error.
func (p *Player) PlayNow(ctx context.Context, job ClipJob) error {
	if p.deps.Blocklist != nil {
		blocked, err := p.deps.Blocklist.IsBlocked(ctx, job.ClipName)
		if err != nil {
			return fmt.Errorf("failed to check blocklist: %w", err)
		}
		if blocked {
			p.deps.Logger.Info("Skipping blocked clip job", jobAttrs(job)...)
			return nil
		}
	}

	clip, ok := p.deps.Clips.Lookup(job.ClipName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClip, job.ClipName)
	}

	channelID := job.ChannelID
	if channelID == "" {
		var err error
		channelID, err = p.deps.Channels.BusiestChannel(job.GuildID)
		if err != nil {
			return fmt.Errorf("failed to pick a voice channel: %w", err)
		}
	}

	audio, err := p.deps.Clips.Open(ctx, clip)
	if err != nil {
		return err
	}

	// Jobs play with no requester, so nobody can skip them on their own.
	req := &playback.PlayRequest{
		ChannelID: channelID,
		Audio:     audio,
		FilePath:  clip.Path,
		OnComplete: playback.CompletionFunc(func(result playback.Result) {
			attrs := append(jobAttrs(job), "skipped", result.Skipped)
			if result.Err != nil {
				p.deps.Logger.Warn("Clip job did not play", append(attrs, "error", result.Err)...)
				return
			}
			p.deps.Logger.Info("Clip job played", attrs...)
		}),
	}
	if err := p.deps.Submitter.Submit(job.GuildID, req); err != nil {
		_ = audio.Close()
		return fmt.Errorf("failed to submit clip job: %w", err)
	}
	return nil
}
