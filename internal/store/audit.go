package store

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Audit verbs recorded by the pipelines.
const (
	AuditSearch     = "SEARCH"
	AuditBuySuccess = "BUY_SUCCESS"
	AuditBuyFail    = "BUY_FAIL"
)

// AuditAppend records an audit entry. The audit log is additive and never
// read by the pipelines, so failures are logged and swallowed.
func (s *Store) AuditAppend(userID, verb string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[audit] warning: marshal payload for verb=%s: %v", verb, err)
		data = []byte("{}")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO audit_log (id, user_id, verb, payload_json, created_at_ns)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), userID, verb, string(data), time.Now().UnixNano())
	if err != nil {
		log.Printf("[audit] warning: insert verb=%s failed: %v", verb, err)
	}
}
