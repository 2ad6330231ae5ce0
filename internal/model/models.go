// Package model defines the persistent entities shared across packages.
package model

import "time"

// DomainStatus is the lifecycle state of a registered domain.
type DomainStatus string

const (
	DomainAvailable  DomainStatus = "AVAILABLE"
	DomainPurchased  DomainStatus = "PURCHASED"
	DomainDNSApplied DomainStatus = "DNS_APPLIED"
	DomainError      DomainStatus = "ERROR"
)

// User owns API keys and domains.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// APIKey is an opaque bearer credential bound to a user.
type APIKey struct {
	ID     string
	Key    string
	UserID string
}

// Domain is a registered (or registering) domain name. Name is unique across
// the whole system because registration is globally exclusive.
type Domain struct {
	ID        string
	Name      string
	UserID    string
	Registrar string
	Status    DomainStatus
	Privacy   bool
	AutoRenew bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Purchase is an append-only record of a completed registrar order.
// TotalCents carries USD with exact cent precision.
type Purchase struct {
	ID         string
	UserID     string
	DomainID   string
	Registrar  string
	OrderID    string
	Years      int
	TotalCents int64
	Premium    bool
	CreatedAt  time.Time
}

// AuditEntry is an append-only audit record. UserID may be empty for
// unauthenticated actions.
type AuditEntry struct {
	ID          string
	UserID      string
	Verb        string
	PayloadJSON string
	CreatedAt   time.Time
}

// IdemRecord is a durable idempotency slot. A non-expired record implies a
// completed response for its key.
type IdemRecord struct {
	Key          string
	Digest       string
	ResponseJSON string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// DailySpend accumulates USD cents per (account, UTC day).
type DailySpend struct {
	AccountKey string
	Day        time.Time // midnight UTC
	TotalCents int64
}

// Cents converts a float USD amount to integer cents, rounding half away
// from zero.
func Cents(usd float64) int64 {
	if usd < 0 {
		return -Cents(-usd)
	}
	return int64(usd*100 + 0.5)
}

// USD converts integer cents back to a float USD amount.
func USD(cents int64) float64 {
	return float64(cents) / 100
}

// DayUTC truncates t to midnight UTC.
func DayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
