// Package gateway implements the purchase, search, and status pipelines on
// top of the store, the registrar drivers, and the label filter.
package gateway

import (
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/winston-domains/winston/internal/config"
	"github.com/winston-domains/winston/internal/keymutex"
	"github.com/winston-domains/winston/internal/metrics"
	"github.com/winston-domains/winston/internal/registrar"
	"github.com/winston-domains/winston/internal/store"
)

// domainRe is the accepted label.tld shape. Full length is checked
// separately (3..253).
var domainRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?\.[a-zA-Z]{2,}$`)

// Gateway owns the request pipelines. All dependencies are injected at
// startup; the zero value is not usable.
type Gateway struct {
	cfg     *config.EnvConfig
	store   *store.Store
	driver  registrar.Driver
	locks   *keymutex.KeyMutex
	metrics *metrics.Metrics

	// now is replaced in tests.
	now func() time.Time
}

// New wires a gateway from its dependencies.
func New(cfg *config.EnvConfig, st *store.Store, driver registrar.Driver, locks *keymutex.KeyMutex, m *metrics.Metrics) *Gateway {
	return &Gateway{
		cfg:     cfg,
		store:   st,
		driver:  driver,
		locks:   locks,
		metrics: m,
		now:     time.Now,
	}
}

// Driver exposes the active registrar driver.
func (g *Gateway) Driver() registrar.Driver { return g.driver }

// normalizeDomain lowercases and trims a domain name.
func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// validDomain reports whether a normalized domain matches the accepted
// syntax and length bounds.
func validDomain(domain string) bool {
	if len(domain) < 3 || len(domain) > 253 {
		return false
	}
	return domainRe.MatchString(domain)
}

// splitDomain returns the label and TLD of a normalized domain. The TLD is
// everything after the first dot.
func splitDomain(domain string) (label, tld string) {
	i := strings.Index(domain, ".")
	if i < 0 {
		return domain, ""
	}
	return domain[:i], domain[i+1:]
}

// checkDomainSyntax validates syntax and the TLD allowlist, returning the
// normalized domain.
func (g *Gateway) checkDomainSyntax(domain string) (string, *Error) {
	d := normalizeDomain(domain)
	if !validDomain(d) {
		return "", E(KindValidationError, "invalid domain %q", d)
	}
	_, tld := splitDomain(d)
	if !g.cfg.TLDAllowed(tld) {
		return "", E(KindValidationError, "tld %q is not allowed", tld)
	}
	return d, nil
}

func logWarn(format string, args ...any) {
	log.Printf("[gateway] warning: "+format, args...)
}

// countRegistrarCall records one upstream driver call in the metrics.
func (g *Gateway) countRegistrarCall(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	g.metrics.RegistrarCalls.WithLabelValues(g.driver.Name(), op, result).Inc()
}
