package sweeper

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/winston-domains/winston/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenDB(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

func TestRunSweepsExpiredState(t *testing.T) {
	st := newTestStore(t)
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	// One live and one expired idempotency slot.
	if err := st.IdemCommit("buy:live.com:k1", "d1", "{}", time.Hour, base); err != nil {
		t.Fatalf("commit live: %v", err)
	}
	if err := st.IdemCommit("buy:old.com:k2", "d2", "{}", time.Minute, base.Add(-2*time.Hour)); err != nil {
		t.Fatalf("commit old: %v", err)
	}

	// One recent and one out-of-retention spend row.
	if err := st.SpendAdd("acct", base, 100); err != nil {
		t.Fatalf("spend recent: %v", err)
	}
	if err := st.SpendAdd("acct", base.AddDate(0, 0, -120), 200); err != nil {
		t.Fatalf("spend old: %v", err)
	}

	s, err := New(st, "@every 5m", 90)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	s.now = func() time.Time { return base }
	s.run()

	if rec, err := st.IdemBegin("buy:live.com:k1", base); err != nil || rec == nil {
		t.Fatalf("live idem slot swept: %v %v", rec, err)
	}
	if rec, err := st.IdemBegin("buy:old.com:k2", base); err != nil || rec != nil {
		t.Fatalf("expired idem slot survived: %v %v", rec, err)
	}

	if total, err := st.SpendGetTotal("acct", base); err != nil || total != 100 {
		t.Fatalf("recent spend: got %d (%v), want 100", total, err)
	}
	if total, err := st.SpendGetTotal("acct", base.AddDate(0, 0, -120)); err != nil || total != 0 {
		t.Fatalf("old spend survived: got %d (%v)", total, err)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	st := newTestStore(t)
	if _, err := New(st, "not a schedule", 90); err == nil {
		t.Fatal("invalid schedule accepted")
	}
}
