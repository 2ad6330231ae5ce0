package gateway

import (
	"time"

	"github.com/winston-domains/winston/internal/model"
)

// StatusResponse is the persisted-state projection for one domain.
type StatusResponse struct {
	Domain    string         `json:"domain"`
	State     string         `json:"state"`
	Registrar string         `json:"registrar,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// DomainStatus projects the stored domain state. Unknown domains are not an
// error; they report state "unknown".
func (g *Gateway) DomainStatus(domain string) (*StatusResponse, error) {
	d, gerr := g.checkDomainSyntax(domain)
	if gerr != nil {
		return nil, gerr
	}

	rec, err := g.store.GetDomainByName(d)
	if err != nil {
		return nil, Classify(err)
	}
	if rec == nil {
		return &StatusResponse{
			Domain:  d,
			State:   "unknown",
			Details: map[string]any{"message": "domain is not tracked by this service"},
		}, nil
	}

	state := "unknown"
	switch rec.Status {
	case model.DomainPurchased:
		state = "purchased"
	case model.DomainDNSApplied:
		state = "dns_applied"
	case model.DomainError:
		state = "error"
	}

	return &StatusResponse{
		Domain:    rec.Name,
		State:     state,
		Registrar: rec.Registrar,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}
