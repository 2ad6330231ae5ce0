// Package sweeper runs the periodic maintenance jobs: expired idempotency
// slots and spend-ledger rows past retention.
package sweeper

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/winston-domains/winston/internal/store"
)

// Sweeper schedules the maintenance pass.
type Sweeper struct {
	cron          *cron.Cron
	store         *store.Store
	retentionDays int

	// now is replaced in tests.
	now func() time.Time
}

// New creates a sweeper on the given cron schedule.
func New(st *store.Store, schedule string, retentionDays int) (*Sweeper, error) {
	s := &Sweeper{
		cron:          cron.New(),
		store:         st,
		retentionDays: retentionDays,
		now:           time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule. Running jobs finish.
func (s *Sweeper) Stop() { s.cron.Stop() }

func (s *Sweeper) run() {
	now := s.now()

	removed, err := s.store.IdemSweepExpired(now)
	if err != nil {
		log.Printf("[sweeper] warning: idempotency sweep failed: %v", err)
	} else if removed > 0 {
		log.Printf("[sweeper] removed %d expired idempotency slots", removed)
	}

	cutoff := now.AddDate(0, 0, -s.retentionDays)
	removed, err = s.store.SpendSweepBefore(cutoff)
	if err != nil {
		log.Printf("[sweeper] warning: spend sweep failed: %v", err)
	} else if removed > 0 {
		log.Printf("[sweeper] removed %d spend rows older than %s", removed, cutoff.Format("2006-01-02"))
	}
}
