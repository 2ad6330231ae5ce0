package gateway

import (
	"context"
	"regexp"
	"strings"

	"github.com/winston-domains/winston/internal/label"
	"github.com/winston-domains/winston/internal/model"
	"github.com/winston-domains/winston/internal/registrar"
	"github.com/winston-domains/winston/internal/store"
)

// defaultSearchTLDs is used when neither the request nor the allowlist
// names any TLDs.
var defaultSearchTLDs = []string{"com", "net", "org", "io"}

const (
	maxPromptLen       = 500
	maxSearchTLDs      = 10
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

var (
	slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)
	tldRe       = regexp.MustCompile(`^[a-z]+$`)
)

// SearchRequest carries either a free-form prompt or an explicit candidate
// list, never both.
type SearchRequest struct {
	Prompt         string   `json:"prompt"`
	Candidates     []string `json:"candidates"`
	TLDs           []string `json:"tlds"`
	PriceCeiling   *float64 `json:"price_ceiling"`
	Limit          int      `json:"limit"`
	IncludePremium bool     `json:"include_premium"`
	IncludeUnicode bool     `json:"include_unicode"`
}

// SearchResponse lists the candidates that survived filtering.
type SearchResponse struct {
	Results []registrar.Availability `json:"results"`
	Count   int                      `json:"count"`
}

func (r *SearchRequest) validate(maxCandidates int) *Error {
	hasPrompt := strings.TrimSpace(r.Prompt) != ""
	hasCandidates := len(r.Candidates) > 0
	if hasPrompt == hasCandidates {
		return E(KindValidationError, "provide exactly one of prompt or candidates")
	}
	if len(r.Prompt) > maxPromptLen {
		return E(KindValidationError, "prompt exceeds %d characters", maxPromptLen)
	}
	if len(r.Candidates) > maxCandidates {
		return E(KindValidationError, "at most %d candidates per search", maxCandidates)
	}
	if len(r.TLDs) > maxSearchTLDs {
		return E(KindValidationError, "at most %d tlds per search", maxSearchTLDs)
	}
	for _, tld := range r.TLDs {
		if !tldRe.MatchString(strings.ToLower(tld)) {
			return E(KindValidationError, "invalid tld %q", tld)
		}
	}
	if r.Limit < 0 || r.Limit > maxSearchLimit {
		return E(KindValidationError, "limit must be between 1 and %d", maxSearchLimit)
	}
	return nil
}

// Slug derives a DNS-usable base label from a free-form prompt.
func Slug(prompt string) string {
	s := slugStripRe.ReplaceAllString(strings.ToLower(prompt), "-")
	return strings.Trim(s, "-")
}

// Search resolves candidates, filters them through the label checker, and
// queries the registrar for availability. user may be nil for anonymous
// callers.
func (g *Gateway) Search(ctx context.Context, user *model.User, req *SearchRequest) (*SearchResponse, error) {
	if err := req.validate(g.cfg.MaxDomainsPerSearch); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	tlds := g.searchTLDs(req.TLDs)
	candidates, err := g.searchCandidates(req, tlds)
	if err != nil {
		return nil, err
	}

	// TLD allowlist is applied per candidate; only a fully disallowed
	// request fails outright.
	allowed := candidates[:0]
	for _, d := range candidates {
		_, tld := splitDomain(d)
		if g.cfg.TLDAllowed(tld) {
			allowed = append(allowed, d)
		}
	}
	if len(allowed) == 0 {
		return nil, E(KindValidationError, "no candidate has an allowed tld")
	}

	safe := make([]string, 0, len(allowed))
	var sampleReasons []label.Reason
	for _, d := range allowed {
		lbl, _ := splitDomain(d)
		res := label.Check(lbl, req.IncludeUnicode)
		if res.Safe {
			safe = append(safe, d)
			continue
		}
		for _, reason := range res.Reasons {
			if len(sampleReasons) < 2 {
				sampleReasons = append(sampleReasons, reason)
			}
		}
	}
	if len(safe) == 0 {
		return nil, E(KindUnsafeLabel, "all candidates rejected by the label filter").
			WithDetails(map[string]any{"sample_reasons": sampleReasons})
	}

	avails, err := g.driver.CheckAvailability(ctx, safe)
	g.countRegistrarCall("check_availability", err)
	if err != nil {
		return nil, mapDriverError(err)
	}

	results := make([]registrar.Availability, 0, len(avails))
	for _, a := range avails {
		if a.Premium && !req.IncludePremium {
			continue
		}
		if req.PriceCeiling != nil && a.PriceUSD > *req.PriceCeiling {
			continue
		}
		results = append(results, a)
		if len(results) == limit {
			break
		}
	}

	userID := ""
	if user != nil {
		userID = user.ID
	}
	g.store.AuditAppend(userID, store.AuditSearch, map[string]any{
		"prompt": req.Prompt,
		"tlds":   tlds,
		"count":  len(results),
	})

	return &SearchResponse{Results: results, Count: len(results)}, nil
}

// searchTLDs picks the effective TLD set: explicit request, then allowlist,
// then the built-in defaults.
func (g *Gateway) searchTLDs(requested []string) []string {
	if len(requested) > 0 {
		out := make([]string, len(requested))
		for i, tld := range requested {
			out[i] = strings.ToLower(tld)
		}
		return out
	}
	if len(g.cfg.AllowlistTLDs) > 0 {
		return g.cfg.AllowlistTLDs
	}
	return defaultSearchTLDs
}

// searchCandidates resolves the domain list to check: the normalized
// explicit candidates, or prompt-derived {base}.{tld} combinations.
func (g *Gateway) searchCandidates(req *SearchRequest, tlds []string) ([]string, error) {
	if len(req.Candidates) > 0 {
		out := make([]string, 0, len(req.Candidates))
		for _, c := range req.Candidates {
			d := normalizeDomain(c)
			if !candidateSyntax(d) {
				return nil, E(KindValidationError, "invalid candidate domain %q", c)
			}
			out = append(out, d)
		}
		return out, nil
	}

	base := Slug(req.Prompt)
	if base == "" {
		return nil, E(KindValidationError, "prompt yields no usable label")
	}
	out := make([]string, 0, len(tlds))
	for _, tld := range tlds {
		out = append(out, base+"."+tld)
	}
	return out, nil
}

// candidateSyntax checks structure only: overall and label length bounds and
// an ASCII-alpha TLD. Character-class rejection of the label is deferred to
// the label filter so per-candidate reasons surface instead of a blanket
// validation error.
func candidateSyntax(domain string) bool {
	if len(domain) < 3 || len(domain) > 253 {
		return false
	}
	lbl, tld := splitDomain(domain)
	if len(lbl) < 1 || len(lbl) > 63 {
		return false
	}
	return len(tld) >= 2 && tldRe.MatchString(tld)
}
