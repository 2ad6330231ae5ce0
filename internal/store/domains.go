package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/winston-domains/winston/internal/model"
)

// UpsertDomain inserts or updates a domain by name. On conflict the existing
// row keeps its id and created_at; ownership, registrar, status, and privacy
// follow the new registration.
func (s *Store) UpsertDomain(d model.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO domains (id, name, user_id, registrar, status, privacy, auto_renew, created_at_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			user_id       = excluded.user_id,
			registrar     = excluded.registrar,
			status        = excluded.status,
			privacy       = excluded.privacy,
			auto_renew    = excluded.auto_renew,
			updated_at_ns = excluded.updated_at_ns
	`, d.ID, d.Name, d.UserID, d.Registrar, string(d.Status),
		boolToInt(d.Privacy), boolToInt(d.AutoRenew),
		d.CreatedAt.UnixNano(), d.UpdatedAt.UnixNano())
	return err
}

// GetDomainByName returns a domain by its (lowercased) name, or nil if
// absent.
func (s *Store) GetDomainByName(name string) (*model.Domain, error) {
	row := s.db.QueryRow(`
		SELECT id, name, user_id, registrar, status, privacy, auto_renew, created_at_ns, updated_at_ns
		FROM domains WHERE name = ?
	`, name)
	return scanDomain(row)
}

// SetDomainStatus updates the status of a domain by id.
func (s *Store) SetDomainStatus(id string, status model.DomainStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE domains SET status = ?, updated_at_ns = ? WHERE id = ?
	`, string(status), updatedAt.UnixNano(), id)
	return err
}

// InsertPurchase appends a purchase row. A UNIQUE violation on order_id means
// another instance already recorded this registrar order.
func (s *Store) InsertPurchase(p model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO purchases (id, user_id, domain_id, registrar, order_id, years, total_cents, premium, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.DomainID, p.Registrar, p.OrderID, p.Years,
		p.TotalCents, boolToInt(p.Premium), p.CreatedAt.UnixNano())
	return err
}

// CountPurchasesForDomain returns how many purchases reference a domain id.
func (s *Store) CountPurchasesForDomain(domainID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM purchases WHERE domain_id = ?`, domainID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count purchases: %w", err)
	}
	return n, nil
}

func scanDomain(row *sql.Row) (*model.Domain, error) {
	var d model.Domain
	var status string
	var privacy, autoRenew int
	var createdNs, updatedNs int64
	err := row.Scan(&d.ID, &d.Name, &d.UserID, &d.Registrar, &status,
		&privacy, &autoRenew, &createdNs, &updatedNs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan domain: %w", err)
	}
	d.Status = model.DomainStatus(status)
	d.Privacy = privacy != 0
	d.AutoRenew = autoRenew != 0
	d.CreatedAt = time.Unix(0, createdNs).UTC()
	d.UpdatedAt = time.Unix(0, updatedNs).UTC()
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
