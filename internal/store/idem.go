package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/winston-domains/winston/internal/model"
)

// IdemBegin checks the idempotency slot for key. If a non-expired record
// exists it is returned; otherwise nil. Expired records encountered on the
// way are deleted.
func (s *Store) IdemBegin(key string, now time.Time) (*model.IdemRecord, error) {
	nowNs := now.UnixNano()

	row := s.db.QueryRow(`
		SELECT key, digest, response_json, expires_at_ns, created_at_ns
		FROM idem WHERE key = ?
	`, key)

	var rec model.IdemRecord
	var expiresNs, createdNs int64
	err := row.Scan(&rec.Key, &rec.Digest, &rec.ResponseJSON, &expiresNs, &createdNs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan idem: %w", err)
	}

	if expiresNs <= nowNs {
		s.mu.Lock()
		_, delErr := s.db.Exec(`DELETE FROM idem WHERE key = ? AND expires_at_ns <= ?`, key, nowNs)
		s.mu.Unlock()
		if delErr != nil {
			return nil, fmt.Errorf("delete expired idem: %w", delErr)
		}
		return nil, nil
	}

	rec.ExpiresAt = time.Unix(0, expiresNs).UTC()
	rec.CreatedAt = time.Unix(0, createdNs).UTC()
	return &rec, nil
}

// IdemCommit stores the completed response for key with the given TTL.
func (s *Store) IdemCommit(key, digest, responseJSON string, ttl time.Duration, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO idem (key, digest, response_json, expires_at_ns, created_at_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			digest        = excluded.digest,
			response_json = excluded.response_json,
			expires_at_ns = excluded.expires_at_ns,
			created_at_ns = excluded.created_at_ns
	`, key, digest, responseJSON, now.Add(ttl).UnixNano(), now.UnixNano())
	return err
}

// IdemFail clears the idempotency slot for key so a client retry can run the
// operation again.
func (s *Store) IdemFail(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM idem WHERE key = ?`, key)
	return err
}

// IdemSweepExpired removes all expired idempotency records. Returns the
// number of rows removed.
func (s *Store) IdemSweepExpired(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM idem WHERE expires_at_ns <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
