package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/winston-domains/winston/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestSpendLedger_AccumulatesPerDay(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC)

	total, err := s.SpendGetTotal("acct-1", day)
	if err != nil {
		t.Fatalf("get total: %v", err)
	}
	if total != 0 {
		t.Fatalf("empty total: got %d, want 0", total)
	}

	if err := s.SpendAdd("acct-1", day, 1200); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SpendAdd("acct-1", day, 800); err != nil {
		t.Fatalf("add: %v", err)
	}
	// A different hour of the same UTC day lands in the same bucket.
	if err := s.SpendAdd("acct-1", day.Add(10*time.Hour), 500); err != nil {
		t.Fatalf("add: %v", err)
	}
	// The next day is a separate bucket.
	if err := s.SpendAdd("acct-1", day.Add(24*time.Hour), 9999); err != nil {
		t.Fatalf("add: %v", err)
	}

	total, err = s.SpendGetTotal("acct-1", day)
	if err != nil {
		t.Fatalf("get total: %v", err)
	}
	if total != 2500 {
		t.Fatalf("total: got %d, want 2500", total)
	}
}

func TestSpendLedger_ConcurrentAdds(t *testing.T) {
	s := newTestStore(t)
	day := time.Now().UTC()

	const workers = 16
	const perWorker = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := s.SpendAdd("acct-c", day, 3); err != nil {
					t.Errorf("add: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	total, err := s.SpendGetTotal("acct-c", day)
	if err != nil {
		t.Fatalf("get total: %v", err)
	}
	if want := int64(workers * perWorker * 3); total != want {
		t.Fatalf("total: got %d, want %d", total, want)
	}
}

func TestSpendLedger_Remaining(t *testing.T) {
	s := newTestStore(t)
	day := time.Now().UTC()

	if err := s.SpendAdd("acct-r", day, 499000); err != nil {
		t.Fatalf("add: %v", err)
	}
	remaining, err := s.SpendRemaining("acct-r", day, 500000)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 1000 {
		t.Fatalf("remaining: got %d, want 1000", remaining)
	}

	exceed, err := s.SpendWouldExceed("acct-r", day, 2000, 500000)
	if err != nil {
		t.Fatalf("would exceed: %v", err)
	}
	if !exceed {
		t.Fatal("would exceed: got false, want true")
	}

	if err := s.SpendAdd("acct-r", day, 5000); err != nil {
		t.Fatalf("add: %v", err)
	}
	remaining, err = s.SpendRemaining("acct-r", day, 500000)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining clamps at zero: got %d", remaining)
	}
}

func TestSpendLedger_SweepBefore(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if err := s.SpendAdd("acct-s", now.AddDate(0, 0, -120), 100); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SpendAdd("acct-s", now, 200); err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := s.SpendSweepBefore(now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: got %d, want 1", removed)
	}
	total, err := s.SpendGetTotal("acct-s", now)
	if err != nil {
		t.Fatalf("get total: %v", err)
	}
	if total != 200 {
		t.Fatalf("surviving total: got %d, want 200", total)
	}
}

func TestIdem_BeginCommitReplay(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	key := "buy:example.com:550e8400-e29b-41d4-a716-446655440000"

	rec, err := s.IdemBegin(key, now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if rec != nil {
		t.Fatalf("begin on empty slot: got %+v, want nil", rec)
	}

	if err := s.IdemCommit(key, "digest-1", `{"order_id":"PB-1"}`, time.Hour, now); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rec, err = s.IdemBegin(key, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("begin replay: %v", err)
	}
	if rec == nil {
		t.Fatal("begin replay: got nil, want stored record")
	}
	if rec.Digest != "digest-1" || rec.ResponseJSON != `{"order_id":"PB-1"}` {
		t.Fatalf("stored record: got %+v", rec)
	}
}

func TestIdem_ExpiredSlotIsCleared(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	key := "buy:example.com:00000000-0000-4000-8000-000000000001"

	if err := s.IdemCommit(key, "d", "{}", time.Hour, now); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rec, err := s.IdemBegin(key, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("begin after expiry: %v", err)
	}
	if rec != nil {
		t.Fatalf("expired slot: got %+v, want nil", rec)
	}

	// Row must be physically gone.
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM idem WHERE key = ?`, key).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired row still present: %d", n)
	}
}

func TestIdem_FailClearsSlot(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	key := "buy:example.com:00000000-0000-4000-8000-000000000002"

	if err := s.IdemCommit(key, "d", "{}", time.Hour, now); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.IdemFail(key); err != nil {
		t.Fatalf("fail: %v", err)
	}
	rec, err := s.IdemBegin(key, now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if rec != nil {
		t.Fatalf("slot after fail: got %+v, want nil", rec)
	}
}

func TestIdem_SweepExpired(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if err := s.IdemCommit("k1", "d", "{}", time.Minute, now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.IdemCommit("k2", "d", "{}", time.Hour, now); err != nil {
		t.Fatalf("commit: %v", err)
	}

	removed, err := s.IdemSweepExpired(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: got %d, want 1", removed)
	}
}

func TestDomains_UpsertPreservesIDOnConflict(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	d := model.Domain{
		ID: "dom-1", Name: "example.com", UserID: "u1", Registrar: "porkbun",
		Status: model.DomainPurchased, Privacy: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.UpsertDomain(d); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	d2 := d
	d2.ID = "dom-2"
	d2.Status = model.DomainDNSApplied
	d2.UpdatedAt = now.Add(time.Minute)
	if err := s.UpsertDomain(d2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetDomainByName("example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get: nil")
	}
	if got.ID != "dom-1" {
		t.Fatalf("id after conflict: got %q, want dom-1", got.ID)
	}
	if got.Status != model.DomainDNSApplied {
		t.Fatalf("status: got %q, want DNS_APPLIED", got.Status)
	}
}

func TestPurchases_DuplicateOrderIDRejected(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	p := model.Purchase{
		ID: "p1", UserID: "u1", DomainID: "dom-1", Registrar: "porkbun",
		OrderID: "PB-100", Years: 1, TotalCents: 1200, CreatedAt: now,
	}
	if err := s.InsertPurchase(p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	p.ID = "p2"
	err := s.InsertPurchase(p)
	if err == nil {
		t.Fatal("duplicate order_id accepted")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("error class: got %v, want unique violation", err)
	}
}

func TestUsers_APIKeyLookup(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if err := s.CreateUser(model.User{ID: "u1", Email: "a@example.com", CreatedAt: now}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateAPIKey(model.APIKey{ID: "k1", Key: "secret-key", UserID: "u1"}); err != nil {
		t.Fatalf("create key: %v", err)
	}

	u, err := s.GetUserByAPIKey("secret-key")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u == nil || u.ID != "u1" {
		t.Fatalf("lookup: got %+v, want user u1", u)
	}

	missing, err := s.GetUserByAPIKey("nope")
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("unknown key resolved to %+v", missing)
	}
}
