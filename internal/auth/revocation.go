package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers revoked token ids until they would expire anyway
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocations keeps revocations in process memory
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations creates an in-memory revocation store
func NewMemoryRevocations(now func() time.Time) *MemoryRevocations {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{revoked: make(map[string]time.Time), now: now}
}

// Revoke records jti as revoked until the given instant
func (m *MemoryRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, id)
		}
	}
	if until.After(now) {
		m.revoked[jti] = until
	}
	return nil
}

// IsRevoked reports whether jti is currently revoked
func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.revoked[jti]
	return ok && exp.After(m.now()), nil
}

// RedisRevocations shares revocations between instances through Redis keys
// that expire together with the token
type RedisRevocations struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocations connects to the Redis instance at url
func NewRedisRevocations(ctx context.Context, url string) (*RedisRevocations, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisRevocationsFromClient(client), nil
}

// NewRedisRevocationsFromClient wraps an existing client
func NewRedisRevocationsFromClient(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "codesnap:revoked:"}
}

// Revoke stores jti with a TTL matching the token's remaining lifetime
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether jti has a live revocation key
func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	count, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Close closes the Redis connection
func (r *RedisRevocations) Close() error {
	return r.client.Close()
}
