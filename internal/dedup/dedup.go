// Package dedup suppresses duplicate inbound events before they reach the
// classifier. Claims are held in Redis with a TTL equal to the dedup window;
// when Redis is unreachable the deduplicator fails open so a cache outage
// never drops customer contact.
package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dedup:event:"

// Deduplicator claims event fingerprints for a rolling window.
type Deduplicator struct {
	client *redis.Client
	window time.Duration
}

func New(client *redis.Client, window time.Duration) *Deduplicator {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Deduplicator{client: client, window: window}
}

// Accept attempts to register the fingerprint. It returns true when the caller
// owns the event and should process it, false when another delivery already
// claimed it inside the window. Redis errors fail open: the event is treated
// as fresh and a warning is logged.
func (d *Deduplicator) Accept(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+fingerprint, time.Now().UTC().Format(time.RFC3339), d.window).Result()
	if err != nil {
		log.Printf("[Dedup] redis unavailable, failing open: %v", err)
		return true, nil
	}
	return ok, nil
}

// Release drops a claim so a failed pipeline run can be retried before the
// window expires.
func (d *Deduplicator) Release(ctx context.Context, fingerprint string) error {
	if err := d.client.Del(ctx, keyPrefix+fingerprint).Err(); err != nil {
		return fmt.Errorf("releasing dedup claim: %w", err)
	}
	return nil
}

// Window reports the configured suppression window.
func (d *Deduplicator) Window() time.Duration {
	return d.window
}
