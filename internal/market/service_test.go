package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

type memRepo struct {
	mu    sync.Mutex
	snaps map[string]domain.MarketSnapshot
}

func newMemRepo() *memRepo {
	return &memRepo{snaps: make(map[string]domain.MarketSnapshot)}
}

func (m *memRepo) Upsert(_ context.Context, snap domain.MarketSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.snaps[snap.ProductID]; ok && cur.ObservedAt.After(snap.ObservedAt) {
		return nil
	}
	m.snaps[snap.ProductID] = snap
	return nil
}

func (m *memRepo) Get(_ context.Context, productID string) (*domain.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return &snap, nil
}

func TestLowestReturnsFreshSnapshot(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, 6*time.Hour)
	ctx := context.Background()

	snap := domain.MarketSnapshot{
		ProductID:   "iphone-13",
		LowestPrice: 14500,
		SourceCount: 3,
		ObservedAt:  time.Now().UTC().Add(-time.Hour),
	}
	if err := svc.Put(ctx, snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := svc.Lowest(ctx, "iphone-13")
	if err != nil {
		t.Fatalf("lowest: %v", err)
	}
	if got.LowestPrice != 14500 {
		t.Fatalf("price = %v, want 14500", got.LowestPrice)
	}
}

func TestLowestStaleBeyondHorizon(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, 6*time.Hour)
	ctx := context.Background()

	snap := domain.MarketSnapshot{
		ProductID:   "iphone-13",
		LowestPrice: 14500,
		SourceCount: 3,
		ObservedAt:  time.Now().UTC().Add(-7 * time.Hour),
	}
	if err := svc.Put(ctx, snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err := svc.Lowest(ctx, "iphone-13")
	if !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
}

func TestLowestUnknownProduct(t *testing.T) {
	svc := NewService(newMemRepo(), 6*time.Hour)
	_, err := svc.Lowest(context.Background(), "no-such-product")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutMonotonic(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, 6*time.Hour)
	ctx := context.Background()

	newer := domain.MarketSnapshot{ProductID: "p1", LowestPrice: 100, SourceCount: 2, ObservedAt: time.Now().UTC()}
	older := domain.MarketSnapshot{ProductID: "p1", LowestPrice: 90, SourceCount: 2, ObservedAt: time.Now().UTC().Add(-time.Hour)}

	if err := svc.Put(ctx, newer); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := svc.Put(ctx, older); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := svc.Lowest(ctx, "p1")
	if err != nil {
		t.Fatalf("lowest: %v", err)
	}
	if got.LowestPrice != 100 {
		t.Fatalf("price = %v, want the newer 100", got.LowestPrice)
	}
}

func TestPutValidation(t *testing.T) {
	svc := NewService(newMemRepo(), 6*time.Hour)
	ctx := context.Background()

	cases := []domain.MarketSnapshot{
		{LowestPrice: 100, SourceCount: 1},
		{ProductID: "p1", LowestPrice: 0, SourceCount: 1},
		{ProductID: "p1", LowestPrice: 100, SourceCount: 0},
	}
	for _, snap := range cases {
		if err := svc.Put(ctx, snap); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("put(%+v) err = %v, want ErrInvalidSnapshot", snap, err)
		}
	}
}
