package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/glizzus/clipster/internal/playback"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayLogEntry is one row of play history.
type PlayLogEntry struct {
	ID          string
	GuildID     string
	ChannelID   string
	RequesterID string
	ClipPath    string
	Outcome     playback.Outcome
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ClipCount is how often a clip was played to completion.
type ClipCount struct {
	ClipPath string
	Plays    int
}

type PlayLogPersister interface {
	Save(ctx context.Context, entry PlayLogEntry) error
}

type PlayLogReader interface {
	List(ctx context.Context, guildID string, limit int) ([]PlayLogEntry, error)
	Top(ctx context.Context, guildID string, limit int) ([]ClipCount, error)
}

type PostgresPlayLogRepository struct {
	db *pgxpool.Pool
}

var (
	_ PlayLogPersister   = (*PostgresPlayLogRepository)(nil)
	_ PlayLogReader      = (*PostgresPlayLogRepository)(nil)
	_ playback.AuditSink = (*PostgresPlayLogRepository)(nil)
)

func NewPostgresPlayLogRepository(db *pgxpool.Pool) *PostgresPlayLogRepository {
	return &PostgresPlayLogRepository{db: db}
}

func PlayLogEntryToRowParams(entry PlayLogEntry) []any {
	return []any{
		entry.ID,
		entry.GuildID,
		entry.ChannelID,
		entry.RequesterID,
		entry.ClipPath,
		string(entry.Outcome),
		entry.Error,
		entry.StartedAt,
		entry.FinishedAt,
	}
}

// Save inserts entry. Saving the same id twice keeps the latest outcome.
func (r *PostgresPlayLogRepository) Save(ctx context.Context, entry PlayLogEntry) error {
	const query = `
	INSERT INTO play_log (id, guild_id, channel_id, requester_id, clip_path, outcome, error, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		outcome = EXCLUDED.outcome,
		error = EXCLUDED.error,
		finished_at = EXCLUDED.finished_at
	`

	if _, err := r.db.Exec(ctx, query, PlayLogEntryToRowParams(entry)...); err != nil {
		return fmt.Errorf("failed to insert play log entry: %w", err)
	}
	return nil
}

// Record stores a finished request from the playback loop.
func (r *PostgresPlayLogRepository) Record(ctx context.Context, record playback.PlayRecord) error {
	return r.Save(ctx, PlayLogEntry{
		ID:          record.RequestID,
		GuildID:     record.GuildID,
		ChannelID:   record.ChannelID,
		RequesterID: record.RequesterID,
		ClipPath:    record.FilePath,
		Outcome:     record.Outcome,
		Error:       record.Error,
		StartedAt:   record.StartedAt,
		FinishedAt:  record.FinishedAt,
	})
}

// List returns a guild's most recent plays, newest first.
func (r *PostgresPlayLogRepository) List(ctx context.Context, guildID string, limit int) ([]PlayLogEntry, error) {
	const query = `
	SELECT id, guild_id, channel_id, requester_id, clip_path, outcome, error, started_at, finished_at
	FROM play_log
	WHERE guild_id = $1
	ORDER BY started_at DESC, id DESC
	LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play log: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlayLogEntry, error) {
		var e PlayLogEntry
		var outcome string
		err := row.Scan(&e.ID, &e.GuildID, &e.ChannelID, &e.RequesterID, &e.ClipPath, &outcome, &e.Error, &e.StartedAt, &e.FinishedAt)
		e.Outcome = playback.Outcome(outcome)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan play log: %w", err)
	}
	return entries, nil
}

// Top returns the clips most often played to the end in a guild.
func (r *PostgresPlayLogRepository) Top(ctx context.Context, guildID string, limit int) ([]ClipCount, error) {
	const query = `
	SELECT clip_path, COUNT(*) AS plays
	FROM play_log
	WHERE guild_id = $1 AND outcome = 'completed'
	GROUP BY clip_path
	ORDER BY plays DESC, clip_path
	LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query clip counts: %w", err)
	}

	counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ClipCount])
	if err != nil {
		return nil, fmt.Errorf("failed to scan clip counts: %w", err)
	}
	return counts, nil
}
