package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/outreach-engine/internal/dispatch"
	"github.com/ignite/outreach-engine/internal/domain"
)

// DecisionGetter loads the immutable decision a dispatch record points at.
type DecisionGetter interface {
	GetDecision(ctx context.Context, id string) (*domain.Decision, error)
}

// DispatchWorker drains dispatch records that are pending or failed with an
// elapsed backoff. This is the crash-recovery path: a decision committed
// right before a restart is picked up here, keyed by its record, with no
// engine re-run.
type DispatchWorker struct {
	records   dispatch.Repository
	decisions DecisionGetter
	gate      Dispatcher

	workerID    string
	poll        time.Duration
	baseBackoff time.Duration
	batchSize   int

	// Stats
	claimed int64
	sent    int64
	failed  int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

func NewDispatchWorker(records dispatch.Repository, decisions DecisionGetter, gate Dispatcher, poll, baseBackoff time.Duration, batchSize int) *DispatchWorker {
	hostname, _ := os.Hostname()
	if poll <= 0 {
		poll = 15 * time.Second
	}
	if baseBackoff <= 0 {
		baseBackoff = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &DispatchWorker{
		records:     records,
		decisions:   decisions,
		gate:        gate,
		workerID:    fmt.Sprintf("dispatch-%s-%d", hostname, time.Now().UnixNano()%10000),
		poll:        poll,
		baseBackoff: baseBackoff,
		batchSize:   batchSize,
	}
}

// Start begins the polling loop.
func (dw *DispatchWorker) Start() error {
	dw.mu.Lock()
	if dw.running {
		dw.mu.Unlock()
		return fmt.Errorf("dispatch worker already running")
	}
	dw.running = true
	dw.ctx, dw.cancel = context.WithCancel(context.Background())
	dw.mu.Unlock()

	log.Printf("[DispatchWorker] Starting: poll=%v backoff=%v batch=%d", dw.poll, dw.baseBackoff, dw.batchSize)

	dw.wg.Add(1)
	go dw.loop()
	return nil
}

// Stop waits for the in-flight batch to finish.
func (dw *DispatchWorker) Stop() {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		return
	}
	dw.running = false
	dw.mu.Unlock()

	log.Printf("[DispatchWorker] Stopping...")
	dw.cancel()
	dw.wg.Wait()
	log.Printf("[DispatchWorker] Stopped. Claimed: %d, Sent: %d, Failed: %d",
		atomic.LoadInt64(&dw.claimed), atomic.LoadInt64(&dw.sent), atomic.LoadInt64(&dw.failed))
}

func (dw *DispatchWorker) loop() {
	defer dw.wg.Done()

	ticker := time.NewTicker(dw.poll)
	defer ticker.Stop()

	for {
		select {
		case <-dw.ctx.Done():
			return
		case <-ticker.C:
			dw.Drain(dw.ctx)
		}
	}
}

// Drain claims one batch of due records and redispatches them. Exported so
// tests and tooling can force a pass.
func (dw *DispatchWorker) Drain(ctx context.Context) {
	due, err := dw.records.ClaimDue(ctx, time.Now().UTC(), dw.baseBackoff, dw.batchSize)
	if err != nil {
		log.Printf("[DispatchWorker] claiming due records: %v", err)
		return
	}

	for _, rec := range due {
		if ctx.Err() != nil {
			return
		}
		atomic.AddInt64(&dw.claimed, 1)

		decision, err := dw.decisions.GetDecision(ctx, rec.DecisionID)
		if err != nil {
			log.Printf("[DispatchWorker] loading decision %s: %v", rec.DecisionID, err)
			atomic.AddInt64(&dw.failed, 1)
			continue
		}

		outcome, err := dw.gate.Dispatch(ctx, decision)
		if err != nil {
			log.Printf("[DispatchWorker] dispatching %s: %v", decision.ID, err)
			atomic.AddInt64(&dw.failed, 1)
			continue
		}
		switch outcome.Result {
		case dispatch.ResultSent:
			atomic.AddInt64(&dw.sent, 1)
		case dispatch.ResultFailed:
			atomic.AddInt64(&dw.failed, 1)
		}
	}
}

// Stats returns worker counters.
func (dw *DispatchWorker) Stats() (claimed, sent, failed int64) {
	return atomic.LoadInt64(&dw.claimed), atomic.LoadInt64(&dw.sent), atomic.LoadInt64(&dw.failed)
}
