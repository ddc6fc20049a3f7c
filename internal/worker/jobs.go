// Package worker moves clip jobs between the CLI and the bot over a redis
// stream, and keeps the clip blocklist.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glizzus/clipster/internal/generator"
	"github.com/redis/go-redis/v9"
)

const (
	JobStream     = "clip_jobs"
	ConsumerGroup = "clip_players"
)

// ClipJob asks the bot to play a clip in a guild at a given time. An empty
// ChannelID means the busiest voice channel at run time.
type ClipJob struct {
	ID          string
	GuildID     string
	ChannelID   string
	ClipName    string
	RequestedBy string
	RunAt       time.Time
}

func (j ClipJob) values() map[string]any {
	values := map[string]any{
		"id":          j.ID,
		"guildID":     j.GuildID,
		"channelID":   j.ChannelID,
		"clipName":    j.ClipName,
		"requestedBy": j.RequestedBy,
	}
	if !j.RunAt.IsZero() {
		values["runAt"] = j.RunAt.UTC().Format(time.RFC3339)
	}
	return values
}

func jobFromValues(values map[string]any) (ClipJob, error) {
	get := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	job := ClipJob{
		ID:          get("id"),
		GuildID:     get("guildID"),
		ChannelID:   get("channelID"),
		ClipName:    get("clipName"),
		RequestedBy: get("requestedBy"),
	}
	if job.GuildID == "" || job.ClipName == "" {
		return ClipJob{}, errors.New("job is missing a guild or clip")
	}
	if raw := get("runAt"); raw != "" {
		runAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ClipJob{}, fmt.Errorf("invalid runAt %q: %w", raw, err)
		}
		job.RunAt = runAt
	}
	return job, nil
}

type JobPublisher interface {
	Publish(ctx context.Context, jobs ...ClipJob) error
}

type RedisJobPublisher struct {
	client *redis.Client
	ids    generator.Generator[string]
}

var _ JobPublisher = (*RedisJobPublisher)(nil)

// NewRedisJobPublisher returns a publisher. Jobs without an id get a
// UUIDv4 from ids, or from a default generator when ids is nil.
func NewRedisJobPublisher(client *redis.Client, ids generator.Generator[string]) *RedisJobPublisher {
	if ids == nil {
		ids = &generator.UUIDV4Generator{}
	}
	return &RedisJobPublisher{client: client, ids: ids}
}

func (p *RedisJobPublisher) Publish(ctx context.Context, jobs ...ClipJob) error {
	for i := range jobs {
		if jobs[i].ID != "" {
			continue
		}
		id, err := p.ids.Next()
		if err != nil {
			return fmt.Errorf("failed to generate job id: %w", err)
		}
		jobs[i].ID = id
	}

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: JobStream,
				Values: job.values(),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish %d clip jobs: %w", len(jobs), err)
	}
	return nil
}

type JobHandler interface {
	HandleJob(ctx context.Context, job ClipJob) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(ctx context.Context, job ClipJob) error

func (f JobHandlerFunc) HandleJob(ctx context.Context, job ClipJob) error {
	return f(ctx, job)
}

// RedisJobReceiver reads clip jobs as one consumer of ConsumerGroup.
type RedisJobReceiver struct {
	client   *redis.Client
	consumer string
	block    time.Duration
	logger   *slog.Logger
}

// NewRedisJobReceiver creates the stream and consumer group if needed. A
// new group starts at the end of the stream, so jobs published while no
// bot was ever running are not replayed.
func NewRedisJobReceiver(ctx context.Context, client *redis.Client, consumer string, logger *slog.Logger) (*RedisJobReceiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	err := client.XGroupCreateMkStream(ctx, JobStream, ConsumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisJobReceiver{
		client:   client,
		consumer: consumer,
		block:    5 * time.Second,
		logger:   logger.With("consumer", consumer),
	}, nil
}

// Run hands every job to handler until ctx is done. Jobs this consumer
// read but never acknowledged, say before a crash, are handled first.
// Malformed jobs and handler errors are logged and acknowledged.
func (r *RedisJobReceiver) Run(ctx context.Context, handler JobHandler) error {
	start := "0"
	for {
		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: r.consumer,
			Streams:  []string{JobStream, start},
			Count:    16,
			Block:    r.block,
		}).Result()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			start = ">"
			continue
		}
		if err != nil {
			r.logger.Error("Failed to read clip jobs", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		handled := 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				handled++
				r.handle(ctx, handler, msg)
			}
		}
		if start == "0" && handled == 0 {
			start = ">"
		}
	}
}

func (r *RedisJobReceiver) handle(ctx context.Context, handler JobHandler, msg redis.XMessage) {
	job, err := jobFromValues(msg.Values)
	if err != nil {
		r.logger.Warn("Dropping malformed clip job", "messageID", msg.ID, "error", err)
	} else if err := handler.HandleJob(ctx, job); err != nil {
		r.logger.Error("Failed to handle clip job", "jobID", job.ID, "guildID", job.GuildID, "clip", job.ClipName, "error", err)
	}

	if err := r.client.XAck(ctx, JobStream, ConsumerGroup, msg.ID).Err(); err != nil {
		r.logger.Warn("Failed to acknowledge clip job", "messageID", msg.ID, "error", err)
	}
}
