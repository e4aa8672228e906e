package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Reconciliation walks orphans one commit at a time, so a cycle can outlive
// a short lease; the runner extends it between jobs instead.
const defaultLeaseTTL = 30 * time.Minute

// Lock coordinates exclusive batch cycles across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock leases a key via SETNX. The value identifies the holding replica
// so an expired lease taken over by another worker is never released or
// extended from here.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLock constructs a Redis-backed lease.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to take the lease for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := leaseToken()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Extend pushes the lease expiry out by another TTL while this replica still
// holds it. A lost lease is an error; the caller should stop its cycle.
func (l *RedisLock) Extend(ctx context.Context) error {
	if l.token == "" {
		return errors.New("lease not held")
	}
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	if !held {
		l.token = ""
		return errors.New("lease lost to another replica")
	}
	if err := l.client.Set(ctx, l.key, l.token, l.ttl); err != nil {
		return fmt.Errorf("extend lease: %w", err)
	}
	return nil
}

// Release frees the lease only while this replica still holds it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	l.token = ""
	if !held {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	return nil
}

func (l *RedisLock) holds(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read lease holder: %w", err)
	}
	return value == l.token, nil
}

func leaseToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "/" + uuid.NewString()
}
