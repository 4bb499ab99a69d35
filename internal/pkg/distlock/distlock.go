// Package distlock provides a distributed mutex so only one worker instance
// runs a retargeting sweep at a time. Redis is the preferred backend; when no
// Redis client is configured it falls back to a PostgreSQL advisory lock,
// which is released automatically if the session drops.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a non-blocking distributed mutex. A Lock instance is owned by one
// goroutine; concurrent holders need separate instances.
type Lock interface {
	// TryAcquire returns true when the caller now holds the lock.
	TryAcquire(ctx context.Context) (bool, error)
	// Release drops the lock if this instance still owns it.
	Release(ctx context.Context) error
}

// New picks the best available backend.
func New(rdb *redis.Client, db *sql.DB, name string, ttl time.Duration) Lock {
	if rdb != nil {
		return NewRedisLock(rdb, name, ttl)
	}
	return NewAdvisoryLock(db, name)
}

// RedisLock holds the lock via SET NX with a TTL. A random token identifies
// the owner so Release never deletes a lock that expired and was re-acquired
// by another process.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, name string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLock{
		client: client,
		key:    "lock:" + name,
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (l *RedisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	return err
}

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// Extend renews the TTL for sweeps that outlive the initial lease.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	_, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Result()
	return err
}

// AdvisoryLock is the PostgreSQL fallback, keyed by an fnv hash of the name.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

func NewAdvisoryLock(db *sql.DB, name string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&ok)
	return ok, err
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
