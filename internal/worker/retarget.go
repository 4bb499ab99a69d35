// Package worker holds the background loops: the retargeting scheduler that
// sweeps the lead ledger for ghosts, and the dispatch retry worker that
// drains pending and failed dispatch records.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/ignite/outreach-engine/internal/dispatch"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ledger"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
)

const retargetLockName = "retarget-sweep"

// Decider is the engine entry point shared with the webhook path. The sweep
// never duplicates decision logic; it feeds the same Decide.
type Decider interface {
	Decide(ctx context.Context, customerID, productID string, signal *domain.LeadSignal, retarget bool) (*domain.Decision, error)
}

// Dispatcher is the gate the sweep hands non-no_action decisions to.
type Dispatcher interface {
	Dispatch(ctx context.Context, decision *domain.Decision) (dispatch.Outcome, error)
}

// CustomerTagger appends lifecycle tags ("ghost", "qualified") to customers.
type CustomerTagger interface {
	AddTag(ctx context.Context, customerID, tag string) error
}

// RetargetScheduler runs the periodic ghost sweep. Exactly one instance
// sweeps at a time, guarded by a distributed lock.
type RetargetScheduler struct {
	entries    ledger.Repository
	engine     Decider
	gate       Dispatcher
	customers  CustomerTagger
	redis      *redis.Client // optional; nil falls back to PG advisory locks
	db         *sql.DB
	workerID   string
	schedule   string
	grace      time.Duration
	relevance  time.Duration
	batchSize  int
	lockTTL    time.Duration

	// Stats
	swept      int64
	ghosted    int64
	retargeted int64
	lost       int64
	errors     int64

	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

func NewRetargetScheduler(entries ledger.Repository, engine Decider, gate Dispatcher, customers CustomerTagger, db *sql.DB, schedule string, grace, relevance time.Duration, batchSize int, lockTTL time.Duration) *RetargetScheduler {
	hostname, _ := os.Hostname()
	if schedule == "" {
		schedule = "@every 2h"
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	if relevance <= 0 {
		relevance = 7 * 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &RetargetScheduler{
		entries:   entries,
		engine:    engine,
		gate:      gate,
		customers: customers,
		db:        db,
		workerID:  fmt.Sprintf("retarget-%s-%d", hostname, time.Now().UnixNano()%10000),
		schedule:  schedule,
		grace:     grace,
		relevance: relevance,
		batchSize: batchSize,
		lockTTL:   lockTTL,
	}
}

// SetRedisClient enables Redis-based sweep locking; without it the scheduler
// falls back to PostgreSQL advisory locks.
func (rs *RetargetScheduler) SetRedisClient(client *redis.Client) {
	rs.redis = client
}

// Start schedules the sweep loop.
func (rs *RetargetScheduler) Start() error {
	rs.mu.Lock()
	if rs.running {
		rs.mu.Unlock()
		return fmt.Errorf("retarget scheduler already running")
	}
	rs.running = true
	rs.ctx, rs.cancel = context.WithCancel(context.Background())
	rs.mu.Unlock()

	rs.cron = cron.New()
	if _, err := rs.cron.AddFunc(rs.schedule, rs.runSweep); err != nil {
		return fmt.Errorf("scheduling retarget sweep: %w", err)
	}
	rs.cron.Start()

	log.Printf("[RetargetScheduler] Started: schedule=%s grace=%v window=%v batch=%d",
		rs.schedule, rs.grace, rs.relevance, rs.batchSize)
	return nil
}

// Stop waits for an in-flight sweep to finish.
func (rs *RetargetScheduler) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	rs.mu.Unlock()

	log.Printf("[RetargetScheduler] Stopping...")
	rs.cancel()
	if rs.cron != nil {
		<-rs.cron.Stop().Done()
	}
	rs.wg.Wait()
	log.Printf("[RetargetScheduler] Stopped. Swept: %d, Ghosted: %d, Retargeted: %d, Lost: %d, Errors: %d",
		atomic.LoadInt64(&rs.swept), atomic.LoadInt64(&rs.ghosted),
		atomic.LoadInt64(&rs.retargeted), atomic.LoadInt64(&rs.lost), atomic.LoadInt64(&rs.errors))
}

func (rs *RetargetScheduler) runSweep() {
	rs.wg.Add(1)
	defer rs.wg.Done()

	ctx, cancel := context.WithTimeout(rs.ctx, rs.lockTTL)
	defer cancel()

	lock := distlock.New(rs.redis, rs.db, retargetLockName, rs.lockTTL)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		log.Printf("[RetargetScheduler] lock error, skipping sweep: %v", err)
		return
	}
	if !acquired {
		log.Printf("[RetargetScheduler] another instance is sweeping, skipping")
		return
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Printf("[RetargetScheduler] releasing sweep lock: %v", err)
		}
	}()

	rs.Sweep(ctx)
}

// Sweep performs one full pass: expire leads beyond the relevance window,
// ghost stale inquired leads, then re-decide every relevant ghost. Exported
// so a sweep can be forced from tooling.
func (rs *RetargetScheduler) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	graceCutoff := now.Add(-rs.grace)
	windowCutoff := now.Add(-rs.relevance)

	rs.expireLeads(ctx, windowCutoff)
	rs.ghostStaleLeads(ctx, graceCutoff, windowCutoff)
	rs.retargetGhosts(ctx, windowCutoff)
}

// expireLeads marks leads outside the relevance window as lost. Lost is
// terminal; these never appear in a sweep again.
func (rs *RetargetScheduler) expireLeads(ctx context.Context, windowCutoff time.Time) {
	expired, err := rs.entries.Expired(ctx, windowCutoff, rs.batchSize)
	if err != nil {
		log.Printf("[RetargetScheduler] listing expired leads: %v", err)
		atomic.AddInt64(&rs.errors, 1)
		return
	}
	for _, entry := range expired {
		if err := rs.entries.Transition(ctx, entry, domain.LeadLost); err != nil {
			// A concurrent purchase or inquiry is fine; the lead moved on.
			if !errors.Is(err, ledger.ErrConflict) {
				log.Printf("[RetargetScheduler] marking %s/%s lost: %v", entry.CustomerID, entry.ProductID, err)
				atomic.AddInt64(&rs.errors, 1)
			}
			continue
		}
		atomic.AddInt64(&rs.lost, 1)
	}
}

// ghostStaleLeads moves inquired leads past the grace period to ghost and
// tags the customer.
func (rs *RetargetScheduler) ghostStaleLeads(ctx context.Context, graceCutoff, windowCutoff time.Time) {
	stale, err := rs.entries.StaleInquired(ctx, graceCutoff, windowCutoff, rs.batchSize)
	if err != nil {
		log.Printf("[RetargetScheduler] listing stale leads: %v", err)
		atomic.AddInt64(&rs.errors, 1)
		return
	}
	for _, entry := range stale {
		if err := rs.entries.Transition(ctx, entry, domain.LeadGhost); err != nil {
			if !errors.Is(err, ledger.ErrConflict) {
				log.Printf("[RetargetScheduler] ghosting %s/%s: %v", entry.CustomerID, entry.ProductID, err)
				atomic.AddInt64(&rs.errors, 1)
			}
			continue
		}
		atomic.AddInt64(&rs.ghosted, 1)
		if err := rs.customers.AddTag(ctx, entry.CustomerID, "ghost"); err != nil {
			log.Printf("[RetargetScheduler] tagging %s: %v", entry.CustomerID, err)
		}
	}
}

// retargetGhosts re-runs the decision engine for every ghost still inside
// the relevance window. Per-item failures are logged and never abort the
// batch.
func (rs *RetargetScheduler) retargetGhosts(ctx context.Context, windowCutoff time.Time) {
	ghosts, err := rs.entries.GhostsWithin(ctx, windowCutoff, rs.batchSize)
	if err != nil {
		log.Printf("[RetargetScheduler] listing ghosts: %v", err)
		atomic.AddInt64(&rs.errors, 1)
		return
	}

	for _, entry := range ghosts {
		if ctx.Err() != nil {
			return
		}
		atomic.AddInt64(&rs.swept, 1)

		decision, err := rs.engine.Decide(ctx, entry.CustomerID, entry.ProductID, nil, true)
		if err != nil {
			log.Printf("[RetargetScheduler] deciding %s/%s: %v", entry.CustomerID, entry.ProductID, err)
			atomic.AddInt64(&rs.errors, 1)
			continue
		}
		if !decision.Strategy.RequiresDispatch() {
			continue
		}

		outcome, err := rs.gate.Dispatch(ctx, decision)
		if err != nil {
			log.Printf("[RetargetScheduler] dispatching %s: %v", decision.ID, err)
			atomic.AddInt64(&rs.errors, 1)
			continue
		}
		if outcome.Result == dispatch.ResultSent {
			atomic.AddInt64(&rs.retargeted, 1)
		}
	}
}

// Stats returns sweep counters for the health endpoint.
func (rs *RetargetScheduler) Stats() (swept, ghosted, retargeted, lost, errs int64) {
	return atomic.LoadInt64(&rs.swept), atomic.LoadInt64(&rs.ghosted),
		atomic.LoadInt64(&rs.retargeted), atomic.LoadInt64(&rs.lost), atomic.LoadInt64(&rs.errors)
}
