package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLockMutualExclusion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	a := NewRedisLock(client, "retarget-sweep", time.Minute)
	b := NewRedisLock(client, "retarget-sweep", time.Minute)

	ok, err := a.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := b.TryAcquire(ctx); ok {
		t.Fatal("second holder should not acquire a held lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.TryAcquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	a := NewRedisLock(client, "retarget-sweep", time.Minute)
	b := NewRedisLock(client, "retarget-sweep", time.Minute)

	if ok, _ := a.TryAcquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	// b never held the lock; its release must not free a's lease
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.TryAcquire(ctx); ok {
		t.Fatal("lock should still be held by a")
	}
}

func TestRedisLockExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	a := NewRedisLock(client, "retarget-sweep", time.Minute)
	if ok, _ := a.TryAcquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	mr.FastForward(2 * time.Minute)

	b := NewRedisLock(client, "retarget-sweep", time.Minute)
	if ok, _ := b.TryAcquire(ctx); !ok {
		t.Fatal("lock should be acquirable after TTL expiry")
	}
}
