package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/winston-domains/winston/internal/model"
)

// GetUserByAPIKey resolves a bearer credential to its owning user.
// Returns nil when the key is unknown.
func (s *Store) GetUserByAPIKey(key string) (*model.User, error) {
	row := s.db.QueryRow(`
		SELECT u.id, u.email, u.created_at_ns
		FROM api_keys k JOIN users u ON u.id = k.user_id
		WHERE k.key = ?
	`, key)

	var u model.User
	var createdNs int64
	if err := row.Scan(&u.ID, &u.Email, &createdNs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user by api key: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdNs).UTC()
	return &u, nil
}

// CreateUser inserts a user. Email uniqueness violations surface to the
// caller.
func (s *Store) CreateUser(u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, created_at_ns) VALUES (?, ?, ?)
	`, u.ID, u.Email, u.CreatedAt.UnixNano())
	return err
}

// CreateAPIKey inserts an API key for an existing user.
func (s *Store) CreateAPIKey(k model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO api_keys (id, key, user_id) VALUES (?, ?, ?)
	`, k.ID, k.Key, k.UserID)
	return err
}
