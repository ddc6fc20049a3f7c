package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/glizzus/clipster/internal/datalayer"
	"github.com/glizzus/clipster/internal/repository"
)

var (
	postgresOnce      sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	postgresErr       error
	postgresUsers     sync.WaitGroup

	redisOnce      sync.Once
	redisContainer *tcredis.RedisContainer
	redisURI       string
	redisErr       error
	redisUsers     sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a migrated Postgres container for
// the test. Do not expect a clean state in the database; it is shared
// across tests to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()

	postgresOnce.Do(func() {
		ctx := context.Background()
		postgresContainer, postgresErr = postgres.Run(
			ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("clipster"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if postgresErr != nil {
			return
		}
		connStr, postgresErr = postgresContainer.ConnectionString(ctx, "sslmode=disable")
		if postgresErr != nil {
			return
		}

		var pool *pgxpool.Pool
		pool, postgresErr = pgxpool.New(ctx, connStr)
		if postgresErr != nil {
			return
		}
		defer pool.Close()

		postgresErr = datalayer.MigratePostgres(pool)
	})

	if postgresErr != nil {
		t.Fatalf("failed to start postgres container: %v", postgresErr)
	}
	postgresUsers.Add(1)
	t.Cleanup(postgresUsers.Done)

	return connStr
}

// GetRepository creates a play log repository on connStr. It performs no
// modifications or migrations on the database schema.
func GetRepository(t *testing.T, connStr string) *repository.PostgresPlayLogRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return repository.NewPostgresPlayLogRepository(pool)
}

// UseRedis provisions or reuses a Redis container and returns a client
// for it. Streams and keys are shared across tests.
func UseRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisOnce.Do(func() {
		ctx := context.Background()
		redisContainer, redisErr = tcredis.Run(ctx, "redis:7-alpine")
		if redisErr != nil {
			return
		}
		redisURI, redisErr = redisContainer.ConnectionString(ctx)
	})

	if redisErr != nil {
		t.Fatalf("failed to start redis container: %v", redisErr)
	}
	opts, err := redis.ParseURL(redisURI)
	if err != nil {
		t.Fatalf("failed to parse redis connection string: %v", err)
	}

	client := redis.NewClient(opts)
	redisUsers.Add(1)
	t.Cleanup(func() {
		_ = client.Close()
		redisUsers.Done()
	})
	return client
}

func TerminatePostgresForE2E() {
	postgresUsers.Wait()
	if postgresContainer != nil {
		if err := postgresContainer.Terminate(context.Background()); err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}

func TerminateRedisForE2E() {
	redisUsers.Wait()
	if redisContainer != nil {
		if err := redisContainer.Terminate(context.Background()); err != nil {
			fmt.Printf("failed to terminate redis container: %v", err)
		}
	}
}
