package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/winston-domains/winston/internal/model"
)

// dayKey formats a UTC day as the daily_spend primary key component.
func dayKey(day time.Time) string {
	return model.DayUTC(day).Format("2006-01-02")
}

// SpendGetTotal returns the accumulated cents for (account, UTC day of t).
// Returns 0 when no row exists.
func (s *Store) SpendGetTotal(accountKey string, t time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRow(`
		SELECT total_cents FROM daily_spend WHERE account_key = ? AND day = ?
	`, accountKey, dayKey(t)).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan daily_spend: %w", err)
	}
	return total, nil
}

// SpendAdd atomically increments the (account, day) accumulator. This is the
// only write path into the spend ledger; the upsert's increment executes
// inside SQLite so concurrent adds both land.
func (s *Store) SpendAdd(accountKey string, t time.Time, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO daily_spend (account_key, day, total_cents)
		VALUES (?, ?, ?)
		ON CONFLICT(account_key, day) DO UPDATE SET
			total_cents = total_cents + excluded.total_cents
	`, accountKey, dayKey(t), cents)
	return err
}

// SpendWouldExceed reports whether adding cents would push the account past
// capCents for the UTC day of t.
func (s *Store) SpendWouldExceed(accountKey string, t time.Time, cents, capCents int64) (bool, error) {
	total, err := s.SpendGetTotal(accountKey, t)
	if err != nil {
		return false, err
	}
	return total+cents > capCents, nil
}

// SpendRemaining returns max(0, cap - total) for the UTC day of t.
func (s *Store) SpendRemaining(accountKey string, t time.Time, capCents int64) (int64, error) {
	total, err := s.SpendGetTotal(accountKey, t)
	if err != nil {
		return 0, err
	}
	remaining := capCents - total
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// SpendSweepBefore deletes ledger rows for days strictly before cutoff.
// Returns the number of rows removed.
func (s *Store) SpendSweepBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM daily_spend WHERE day < ?`, dayKey(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
