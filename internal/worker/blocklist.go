package worker

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const blocklistKey = "clip_blocklist"

// Blocklist holds clip names that must not be played. Names are compared
// without regard to case.
type Blocklist interface {
	Block(ctx context.Context, clipName string) error
	Unblock(ctx context.Context, clipName string) error
	IsBlocked(ctx context.Context, clipName string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

func blocklistMember(clipName string) string {
	return strings.ToLower(strings.TrimSpace(clipName))
}

type RedisBlocklist struct {
	client *redis.Client
}

var _ Blocklist = (*RedisBlocklist)(nil)

func NewRedisBlocklist(client *redis.Client) *RedisBlocklist {
	return &RedisBlocklist{client: client}
}

func (b *RedisBlocklist) Block(ctx context.Context, clipName string) error {
	if err := b.client.SAdd(ctx, blocklistKey, blocklistMember(clipName)).Err(); err != nil {
		return fmt.Errorf("failed to block clip %s: %w", clipName, err)
	}
	return nil
}

func (b *RedisBlocklist) Unblock(ctx context.Context, clipName string) error {
	if err := b.client.SRem(ctx, blocklistKey, blocklistMember(clipName)).Err(); err != nil {
		return fmt.Errorf("failed to unblock clip %s: %w", clipName, err)
	}
	return nil
}

func (b *RedisBlocklist) IsBlocked(ctx context.Context, clipName string) (bool, error) {
	blocked, err := b.client.SIsMember(ctx, blocklistKey, blocklistMember(clipName)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist for %s: %w", clipName, err)
	}
	return blocked, nil
}

func (b *RedisBlocklist) List(ctx context.Context) ([]string, error) {
	names, err := b.client.SMembers(ctx, blocklistKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// MemoryBlocklist is a Blocklist for running without redis.
type MemoryBlocklist struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

var _ Blocklist = (*MemoryBlocklist)(nil)

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{names: make(map[string]struct{})}
}

func (b *MemoryBlocklist) Block(_ context.Context, clipName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[blocklistMember(clipName)] = struct{}{}
	return nil
}

func (b *MemoryBlocklist) Unblock(_ context.Context, clipName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.names, blocklistMember(clipName))
	return nil
}

func (b *MemoryBlocklist) IsBlocked(_ context.Context, clipName string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.names[blocklistMember(clipName)]
	return ok, nil
}

func (b *MemoryBlocklist) List(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.names))
	for name := range b.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
