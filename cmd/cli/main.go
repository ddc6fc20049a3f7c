package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/config"
	"github.com/glizzus/clipster/internal/datalayer"
	"github.com/glizzus/clipster/internal/opus"
	"github.com/glizzus/clipster/internal/presenters"
	"github.com/glizzus/clipster/internal/repository"
	"github.com/glizzus/clipster/internal/schedule"
	"github.com/glizzus/clipster/internal/worker"
)

func redisClient(ctx context.Context) (*redis.Client, error) {
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load redis config: %w", err)
	}
	rdb := redis.NewClient(cfg.Options())
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func playLog(ctx context.Context) (*repository.PostgresPlayLogRepository, *pgxpool.Pool, error) {
	pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return repository.NewPostgresPlayLogRepository(pool), pool, nil
}

func publish(c *cli.Context, jobs []worker.ClipJob) error {
	rdb, err := redisClient(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer rdb.Close()

	if err := worker.NewRedisJobPublisher(rdb, nil).Publish(c.Context, jobs...); err != nil {
		return cli.Exit("Failed to publish jobs: "+err.Error(), 1)
	}
	for _, job := range jobs {
		log.Printf("Published job %s: %s in guild %s at %s", job.ID, job.ClipName, job.GuildID, job.RunAt.Format(time.DateTime))
	}
	return nil
}

func jobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "guild-id",
			Usage:    "ID of the guild to play in",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "channel-id",
			Usage: "Voice channel to play in, defaults to the busiest one",
		},
		&cli.StringFlag{
			Name:     "clip",
			Usage:    "Name of the clip to play",
			Required: true,
		},
	}
}

func baseJob(c *cli.Context) worker.ClipJob {
	requestedBy := os.Getenv("USER")
	if requestedBy == "" {
		requestedBy = "cli"
	}
	return worker.ClipJob{
		GuildID:     c.String("guild-id"),
		ChannelID:   c.String("channel-id"),
		ClipName:    c.String("clip"),
		RequestedBy: requestedBy,
	}
}

var playCommand = &cli.Command{
	Name:  "play",
	Usage: "Ask the bot to play a clip now or at a given time",
	Flags: append(jobFlags(), &cli.TimestampFlag{
		Name:   "at",
		Usage:  "When to play the clip (RFC 3339), defaults to now",
		Layout: time.RFC3339,
	}),
	Action: func(c *cli.Context) error {
		job := baseJob(c)
		job.RunAt = time.Now()
		if at := c.Timestamp("at"); at != nil {
			job.RunAt = *at
		}
		return publish(c, []worker.ClipJob{job})
	},
}

var scheduleCommand = &cli.Command{
	Name:  "schedule",
	Usage: "Play a clip on a cron schedule",
	Flags: append(jobFlags(),
		&cli.StringFlag{
			Name:     "cron",
			Usage:    "Cron expression, e.g. '0 12 * * 5'",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "How many upcoming runs to schedule",
			Value: 1,
		},
	),
	Action: func(c *cli.Context) error {
		runTimes, err := schedule.NextRunTimes(c.String("cron"), c.Int("count"))
		if err != nil {
			return cli.Exit("Invalid schedule: "+err.Error(), 1)
		}

		jobs := make([]worker.ClipJob, 0, len(runTimes))
		for _, runAt := range runTimes {
			job := baseJob(c)
			job.RunAt = runAt
			jobs = append(jobs, job)
		}
		return publish(c, jobs)
	},
}

func blocklistCommand(name, usage string, apply func(worker.Blocklist, context.Context, string) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "CLIP...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("Please name at least one clip", 1)
			}
			rdb, err := redisClient(c.Context)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer rdb.Close()

			blocklist := worker.NewRedisBlocklist(rdb)
			for _, clip := range c.Args().Slice() {
				if err := apply(blocklist, c.Context, clip); err != nil {
					return cli.Exit(err.Error(), 1)
				}
				log.Printf("%s: %s", name, clip)
			}
			return nil
		},
	}
}

var blockedCommand = &cli.Command{
	Name:  "blocked",
	Usage: "List blocked clips",
	Action: func(c *cli.Context) error {
		rdb, err := redisClient(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer rdb.Close()

		names, err := worker.NewRedisBlocklist(rdb).List(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if len(names) == 0 {
			log.Println("No clips are blocked.")
			return nil
		}
		fmt.Fprintln(c.App.Writer, strings.Join(names, "\n"))
		return nil
	},
}

var historyFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "guild-id",
		Usage:    "ID of the guild to report on",
		Required: true,
	},
	&cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum rows to show",
		Value: 20,
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "Show recent plays in a guild",
	Flags: historyFlags,
	Action: func(c *cli.Context) error {
		repo, pool, err := playLog(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer pool.Close()

		entries, err := repo.List(c.Context, c.String("guild-id"), c.Int("limit"))
		if err != nil {
			return cli.Exit("Failed to retrieve history: "+err.Error(), 1)
		}
		return presenters.WriteHistory(c.App.Writer, entries)
	},
}

var topCommand = &cli.Command{
	Name:  "top",
	Usage: "Show the most played clips in a guild",
	Flags: historyFlags,
	Action: func(c *cli.Context) error {
		repo, pool, err := playLog(c.Context)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer pool.Close()

		counts, err := repo.Top(c.Context, c.String("guild-id"), c.Int("limit"))
		if err != nil {
			return cli.Exit("Failed to retrieve top clips: "+err.Error(), 1)
		}
		return presenters.WriteTop(c.App.Writer, counts)
	},
}

var clipsCommand = &cli.Command{
	Name:  "clips",
	Usage: "Inspect and upload clips",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List the clips the bot would load",
			Action: func(c *cli.Context) error {
				cfg, err := config.NewClipsConfigFromEnv()
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				var store catalog.ClipStore = &catalog.FileStore{Root: cfg.Dir}
				if cfg.Store == config.ClipStoreMinio {
					if store, err = datalayer.NewMinioStorageFromEnv(); err != nil {
						return cli.Exit(err.Error(), 1)
					}
				}

				clips := catalog.New(cfg.Dir, store, nil)
				if _, err := clips.Reload(c.Context); err != nil {
					return cli.Exit("Failed to load clips: "+err.Error(), 1)
				}
				return presenters.WriteClips(c.App.Writer, clips.Groups())
			},
		},
		{
			Name:      "upload",
			Usage:     "Encode an audio file and upload it to minio",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "key",
					Usage:    "Path of the clip in the store, e.g. memes/airhorn.frames",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "bitrate",
					Usage: "Opus bitrate in bits per second",
					Value: 64000,
				},
				&cli.Float64Flag{
					Name:  "volume",
					Usage: "Volume factor applied while encoding",
					Value: 1,
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.Exit("Please provide exactly one file", 1)
				}
				key := c.String("key")
				if path.Ext(key) != ".frames" {
					return cli.Exit("The key must end in .frames", 1)
				}

				storage, err := datalayer.NewMinioStorageFromEnv()
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				if err := storage.EnsureBucket(c.Context); err != nil {
					return cli.Exit("Failed to ensure bucket: "+err.Error(), 1)
				}

				f, err := os.Open(c.Args().First())
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				defer f.Close()

				frames, err := opus.Encode(c.Context, f, opus.EncodeOptions{
					Bitrate: c.Int("bitrate"),
					Volume:  c.Float64("volume"),
				})
				if err != nil {
					return cli.Exit("Failed to encode clip: "+err.Error(), 1)
				}
				defer frames.Close()

				err = storage.Put(c.Context, key, frames, datalayer.PutOptions{
					Size:        -1,
					ContentType: "application/octet-stream",
				})
				if err != nil {
					return cli.Exit("Failed to upload clip: "+err.Error(), 1)
				}
				log.Printf("Uploaded %s", key)
				return nil
			},
		},
	},
}

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "clipster-cli",
		Description: "Operate clipster without Discord: queue clips, manage the blocklist and read play history",
		Commands: []*cli.Command{
			playCommand,
			scheduleCommand,
			blocklistCommand("block", "Stop clips from being played", worker.Blocklist.Block),
			blocklistCommand("unblock", "Allow blocked clips again", worker.Blocklist.Unblock),
			blockedCommand,
			historyCommand,
			topCommand,
			clipsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
