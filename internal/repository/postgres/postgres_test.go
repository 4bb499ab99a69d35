package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/ignite/outreach-engine/internal/dispatch"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ledger"
	"github.com/ignite/outreach-engine/internal/market"
	"github.com/ignite/outreach-engine/internal/rules"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

func leadRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"customer_id", "product_id", "state", "version",
		"last_inquiry_at", "last_dispatch_at", "purchased", "created_at", "updated_at",
	})
}

func TestLedgerGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM lead_entries").
		WithArgs("c1", "p1").
		WillReturnError(sql.ErrNoRows)

	_, err := NewLedgerRepo(db).Get(context.Background(), "c1", "p1")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLedgerTransitionConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	entry := &domain.LeadEntry{
		CustomerID: "c1", ProductID: "p1",
		State: domain.LeadInquired, Version: 3,
	}

	mock.ExpectExec("UPDATE lead_entries").
		WithArgs(domain.LeadGhost, "c1", "p1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewLedgerRepo(db).Transition(context.Background(), entry, domain.LeadGhost)
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if entry.Version != 3 || entry.State != domain.LeadInquired {
		t.Fatal("entry must be untouched on conflict")
	}
}

func TestLedgerTransitionBumpsVersion(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	entry := &domain.LeadEntry{
		CustomerID: "c1", ProductID: "p1",
		State: domain.LeadInquired, Version: 3,
	}

	mock.ExpectExec("UPDATE lead_entries").
		WithArgs(domain.LeadGhost, "c1", "p1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewLedgerRepo(db).Transition(context.Background(), entry, domain.LeadGhost); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if entry.Version != 4 || entry.State != domain.LeadGhost {
		t.Fatalf("entry = %s v%d, want ghost v4", entry.State, entry.Version)
	}
}

func TestLedgerTransitionRejectsIllegalEdge(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	entry := &domain.LeadEntry{
		CustomerID: "c1", ProductID: "p1",
		State: domain.LeadLost, Version: 2,
	}

	err := NewLedgerRepo(db).Transition(context.Background(), entry, domain.LeadInquired)
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestLedgerCreateConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO lead_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	entry := &domain.LeadEntry{CustomerID: "c1", ProductID: "p1", State: domain.LeadNew}
	err := NewLedgerRepo(db).Create(context.Background(), entry)
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestLedgerStaleInquired(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	grace := now.Add(-24 * time.Hour)
	window := now.Add(-7 * 24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM lead_entries").
		WithArgs(grace, window, 200).
		WillReturnRows(leadRows().AddRow(
			"c1", "p1", "inquired", 2, now.Add(-25*time.Hour), nil, false, now, now,
		))

	entries, err := NewLedgerRepo(db).StaleInquired(context.Background(), grace, window, 200)
	if err != nil {
		t.Fatalf("stale inquired: %v", err)
	}
	if len(entries) != 1 || entries[0].State != domain.LeadInquired {
		t.Fatalf("entries = %+v, want one inquired", entries)
	}
	if entries[0].LastDispatchAt != nil {
		t.Fatal("nil last_dispatch_at must scan to nil pointer")
	}
}

func TestDecisionCommitTx(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	entry := &domain.LeadEntry{
		CustomerID: "c1", ProductID: "p1",
		State: domain.LeadInquired, Version: 2, LastInquiryAt: now,
	}
	decision := &domain.Decision{
		ID: "01J0TEST", CustomerID: "c1", ProductID: "p1",
		Strategy: domain.StrategyPriceDrop, OldPrice: 16000, NewPrice: 13900,
		Reasoning: "competitor undercut", CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lead_entries").
		WithArgs(domain.LeadAwaitingResponse, now, "c1", "p1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO decisions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO dispatch_records").
		WithArgs("01J0TEST", "c1", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewDecisionRepo(db).Commit(context.Background(), decision, entry, domain.LeadAwaitingResponse); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if entry.Version != 3 || entry.State != domain.LeadAwaitingResponse {
		t.Fatalf("entry = %s v%d, want awaiting_response v3", entry.State, entry.Version)
	}
}

func TestDecisionCommitConflictRollsBack(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	entry := &domain.LeadEntry{
		CustomerID: "c1", ProductID: "p1",
		State: domain.LeadInquired, Version: 2, LastInquiryAt: now,
	}
	decision := &domain.Decision{ID: "01J0TEST", Strategy: domain.StrategyNoAction, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lead_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewDecisionRepo(db).Commit(context.Background(), decision, entry, domain.LeadInquired)
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if entry.Version != 2 {
		t.Fatal("entry version must not move on conflict")
	}
}

func TestDecisionCommitNoActionSkipsDispatchRecord(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	entry := &domain.LeadEntry{
		CustomerID: "c1", ProductID: "p1",
		State: domain.LeadInquired, Version: 1, LastInquiryAt: now,
	}
	decision := &domain.Decision{ID: "01J0TEST", Strategy: domain.StrategyNoAction, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lead_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO decisions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewDecisionRepo(db).Commit(context.Background(), decision, entry, domain.LeadInquired); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func dispatchRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"decision_id", "customer_id", "status", "attempts",
		"last_attempt_at", "last_error", "provider_message_id", "created_at",
	})
}

func TestDispatchMarkSentAtMostOnce(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	repo := NewDispatchRepo(db)

	mock.ExpectExec("UPDATE dispatch_records").
		WithArgs("d1", "wamid.abc", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := repo.MarkSent(context.Background(), "d1", "wamid.abc", now)
	if err != nil || !claimed {
		t.Fatalf("first MarkSent = %v, %v; want claimed", claimed, err)
	}

	mock.ExpectExec("UPDATE dispatch_records").
		WithArgs("d1", "wamid.abc", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = repo.MarkSent(context.Background(), "d1", "wamid.abc", now)
	if err != nil || claimed {
		t.Fatalf("second MarkSent = %v, %v; want not claimed", claimed, err)
	}
}

func TestDispatchGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM dispatch_records").
		WithArgs("d1").
		WillReturnError(sql.ErrNoRows)

	_, err := NewDispatchRepo(db).Get(context.Background(), "d1")
	if !errors.Is(err, dispatch.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDispatchClaimDue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE dispatch_records").
		WithArgs(now, 30, 50).
		WillReturnRows(dispatchRows().
			AddRow("d1", "c1", "pending", 0, nil, "", "", now).
			AddRow("d2", "c2", "failed", 2, now.Add(-5*time.Minute), "timeout", "", now))

	due, err := NewDispatchRepo(db).ClaimDue(context.Background(), now, 30*time.Second, 50)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("claimed %d, want 2", len(due))
	}
	if due[1].Attempts != 2 || due[1].LastError != "timeout" {
		t.Fatalf("record = %+v", due[1])
	}
}

func TestSnapshotUpsertAndGet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	repo := NewSnapshotRepo(db)

	mock.ExpectExec("INSERT INTO market_snapshots").
		WithArgs("iphone-13", 13900.0, 3, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	err := repo.Upsert(context.Background(), domain.MarketSnapshot{
		ProductID: "iphone-13", LowestPrice: 13900, SourceCount: 3, ObservedAt: now,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	mock.ExpectQuery("SELECT (.+) FROM market_snapshots").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	if !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRuleFind(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM rules").
		WithArgs(domain.ScopeProduct, "iphone-13").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "scope", "scope_key", "price_floor", "price_ceiling",
			"enabled_strategies", "drop_threshold_pct", "cooldown_minutes",
			"active", "created_at", "updated_at",
		}).AddRow(
			"r1", "product", "iphone-13", 13500.0, 16500.0,
			pq.Array([]string{"price_drop", "value_reinforcement"}), 5.0, 1440,
			true, now, now,
		))

	rule, err := NewRuleRepo(db).Find(context.Background(), domain.ScopeProduct, "iphone-13")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !rule.Allows(domain.StrategyPriceDrop) {
		t.Fatal("rule should allow price_drop")
	}
	if rule.PriceFloor != 13500 {
		t.Fatalf("floor = %v, want 13500", rule.PriceFloor)
	}

	mock.ExpectQuery("SELECT (.+) FROM rules").
		WithArgs(domain.ScopeCategory, "phones").
		WillReturnError(sql.ErrNoRows)
	_, err = NewRuleRepo(db).Find(context.Background(), domain.ScopeCategory, "phones")
	if !errors.Is(err, rules.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCustomerAddTagIsIdempotent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// Second call affects zero rows; still no error.
	mock.ExpectExec("UPDATE customers").
		WithArgs("2348012345678", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE customers").
		WithArgs("2348012345678", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCustomerRepo(db)
	if err := repo.AddTag(context.Background(), "2348012345678@s.whatsapp.net", "ghost"); err != nil {
		t.Fatalf("first add tag: %v", err)
	}
	if err := repo.AddTag(context.Background(), "2348012345678@s.whatsapp.net", "ghost"); err != nil {
		t.Fatalf("second add tag: %v", err)
	}
}

func TestProductResolvePrefersExactID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM products").
		WithArgs("iphone-13").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "list_price", "created_at"}).
			AddRow("iphone-13", "iPhone 13", "phones", 16000.0, now))

	p, err := NewProductRepo(db).Resolve(context.Background(), "iphone-13")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.ListPrice != 16000 {
		t.Fatalf("list price = %v, want 16000", p.ListPrice)
	}
}
