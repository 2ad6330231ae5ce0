// Package registrar abstracts upstream registrar APIs behind a single Driver
// interface with two concrete implementations: a JSON/POST driver (Porkbun)
// and an XML/GET driver (Namecheap). Both share the retry policy and the
// per-TLD pricing cache.
package registrar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/winston-domains/winston/internal/config"
)

// ICANNFeeUSD is the per-year ICANN transaction fee folded into quotes.
const ICANNFeeUSD = 0.18

// Error kinds surfaced by drivers. Never swallowed; the caller decides.
const (
	KindHTTPError              = "HTTP_ERROR"
	KindParseError             = "PARSE_ERROR"
	KindNetworkError           = "NETWORK_ERROR"
	KindMaxRetries             = "MAX_RETRIES"
	KindTLDNotSupported        = "TLD_NOT_SUPPORTED"
	KindInvalidNameserverCount = "INVALID_NAMESERVER_COUNT"
	KindDNSApplyPartialFailure = "DNS_APPLY_PARTIAL_FAILURE"
)

// Error is a classified driver failure.
type Error struct {
	Kind    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Availability is one entry of a bulk availability check.
type Availability struct {
	Domain    string  `json:"domain"`
	Available bool    `json:"available"`
	PriceUSD  float64 `json:"price_usd"`
	Premium   bool    `json:"premium"`
}

// Quote is a price quotation for registering a domain.
type Quote struct {
	RegistrationPriceUSD float64 `json:"registration_price_usd"`
	ICANNFeeUSD          float64 `json:"icann_fee_usd"`
	PrivacyPriceUSD      float64 `json:"privacy_price_usd"`
	TotalUSD             float64 `json:"total_usd"`
	Premium              bool    `json:"premium"`
}

// RegisterRequest carries everything a driver needs to create a domain.
type RegisterRequest struct {
	Domain  string
	Years   int
	Privacy bool
	Contact config.Contact
}

// RegisterResult is the outcome of a registration attempt.
type RegisterResult struct {
	OrderID         string
	ChargedTotalUSD float64
	Success         bool
	Message         string
}

// DomainState is the registrar-side lifecycle of a domain.
type DomainState string

const (
	StateActive   DomainState = "active"
	StatePending  DomainState = "pending"
	StateExpired  DomainState = "expired"
	StateNotFound DomainState = "not_found"
	StateError    DomainState = "error"
)

// Status is a registrar-side status projection.
type Status struct {
	State   DomainState
	Details string
}

// Record is a single DNS record to apply.
type Record struct {
	Type  string `json:"type" yaml:"type"` // A, AAAA, CNAME, TXT, MX, NS
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	TTL   int    `json:"ttl" yaml:"ttl"`
	Prio  int    `json:"prio,omitempty" yaml:"prio,omitempty"`
}

// Nameserver count limits accepted by registries.
const (
	MinNameservers = 2
	MaxNameservers = 13
)

// Driver is the capability set shared by all registrars.
type Driver interface {
	Name() string
	CheckAvailability(ctx context.Context, domains []string) ([]Availability, error)
	Quote(ctx context.Context, domain string, years int, privacy bool) (*Quote, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	Status(ctx context.Context, domain string) (*Status, error)
	SetNameservers(ctx context.Context, domain string, nameservers []string) error
	ApplyRecords(ctx context.Context, domain string, records []Record) error
}

// buildQuote applies the shared pricing formula:
// total = registration*years + ICANN fee*years + optional privacy surcharge.
// All components are rounded to cents.
func buildQuote(regPrice, privacyPrice float64, years int, privacy bool, premium bool) *Quote {
	q := &Quote{
		RegistrationPriceUSD: round2(regPrice),
		ICANNFeeUSD:          round2(ICANNFeeUSD * float64(years)),
		Premium:              premium,
	}
	if privacy {
		q.PrivacyPriceUSD = round2(privacyPrice)
	}
	q.TotalUSD = round2(regPrice*float64(years) + ICANNFeeUSD*float64(years) + q.PrivacyPriceUSD)
	return q
}

func round2(v float64) float64 {
	if v < 0 {
		return -round2(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}

// splitDomain returns the label part and TLD of a dotted domain. The TLD is
// everything after the first dot (multi-level public suffixes are treated as
// one TLD string by both registrar APIs used here).
func splitDomain(domain string) (label, tld string) {
	i := strings.Index(domain, ".")
	if i < 0 {
		return domain, ""
	}
	return domain[:i], domain[i+1:]
}

// availabilityConcurrency caps the per-item fan-out of bulk checks.
const availabilityConcurrency = 5

// fanOutAvailability runs check for every domain with bounded concurrency,
// preserving input order in the result. The first error aborts the batch.
func fanOutAvailability(
	ctx context.Context,
	domains []string,
	check func(ctx context.Context, domain string) (Availability, error),
) ([]Availability, error) {
	results := make([]Availability, len(domains))
	errs := make([]error, len(domains))

	sem := make(chan struct{}, availabilityConcurrency)
	var wg sync.WaitGroup
	for i, d := range domains {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, d string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = check(ctx, d)
		}(i, d)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// validateNameservers enforces the registry-accepted nameserver count.
func validateNameservers(nameservers []string) error {
	if len(nameservers) < MinNameservers || len(nameservers) > MaxNameservers {
		return newError(KindInvalidNameserverCount,
			"nameserver count %d outside [%d,%d]", len(nameservers), MinNameservers, MaxNameservers)
	}
	return nil
}
