package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/winston-domains/winston/internal/dnstemplate"
	"github.com/winston-domains/winston/internal/label"
	"github.com/winston-domains/winston/internal/model"
	"github.com/winston-domains/winston/internal/registrar"
	"github.com/winston-domains/winston/internal/store"
)

// Nameserver modes accepted by BuyRequest.
const (
	NSModeRegistrar = "registrar"
	NSModeCustom    = "custom"
)

// driftToleranceCents is the allowed absolute gap between the client's
// quoted total and the server's fresh quote at commit time.
const driftToleranceCents = 50

// BuyRequest is the purchase input after JSON decoding. normalize applies
// the documented defaults before validation.
type BuyRequest struct {
	Domain           string   `json:"domain"`
	Years            int      `json:"years"`
	WhoisPrivacy     *bool    `json:"whois_privacy"`
	AllowPremium     bool     `json:"allow_premium"`
	AllowUnicode     bool     `json:"allow_unicode"`
	NameserverMode   string   `json:"nameserver_mode"`
	Nameservers      []string `json:"nameservers"`
	DNSTemplateID    string   `json:"dns_template_id"`
	QuotedTotalUSD   float64  `json:"quoted_total_usd"`
	ConfirmationCode string   `json:"confirmation_code"`
	IdempotencyKey   string   `json:"idempotency_key"`
}

// privacy returns the effective whois_privacy value (default true).
func (r *BuyRequest) privacy() bool {
	return r.WhoisPrivacy == nil || *r.WhoisPrivacy
}

func (r *BuyRequest) normalize() {
	r.Domain = normalizeDomain(r.Domain)
	if r.Years == 0 {
		r.Years = 1
	}
	if r.NameserverMode == "" {
		r.NameserverMode = NSModeRegistrar
	}
	// The template default applies only when the registrar keeps the zone.
	if r.NameserverMode == NSModeRegistrar && r.DNSTemplateID == "" {
		r.DNSTemplateID = dnstemplate.DefaultID
	}
}

func (r *BuyRequest) validate() *Error {
	if !validDomain(r.Domain) {
		return E(KindValidationError, "invalid domain %q", r.Domain)
	}
	if r.Years < 1 || r.Years > 10 {
		return E(KindValidationError, "years must be between 1 and 10")
	}
	if r.QuotedTotalUSD <= 0 {
		return E(KindValidationError, "quoted_total_usd must be positive")
	}
	if n := len(r.ConfirmationCode); n < 4 || n > 100 {
		return E(KindValidationError, "confirmation_code must be 4 to 100 characters")
	}
	parsed, err := uuid.Parse(r.IdempotencyKey)
	if err != nil || parsed.Version() != 4 {
		return E(KindValidationError, "idempotency_key must be a UUIDv4")
	}

	switch r.NameserverMode {
	case NSModeRegistrar:
	case NSModeCustom:
		if len(r.Nameservers) < registrar.MinNameservers || len(r.Nameservers) > registrar.MaxNameservers {
			return E(KindNameserversRequired,
				"custom nameserver_mode requires %d to %d nameservers",
				registrar.MinNameservers, registrar.MaxNameservers)
		}
	default:
		return E(KindValidationError, "nameserver_mode must be %q or %q", NSModeRegistrar, NSModeCustom)
	}
	return nil
}

// BuyResponse is the committed purchase result. The serialized form is also
// what the idempotency ledger replays verbatim.
type BuyResponse struct {
	OrderID         string  `json:"order_id"`
	ChargedTotalUSD float64 `json:"charged_total_usd"`
	Registrar       string  `json:"registrar"`
	NameserverMode  string  `json:"nameserver_mode"`
	DNSTemplateID   string  `json:"dns_template_id,omitempty"`
	DomainID        string  `json:"domain_id"`
}

// Buy runs the purchase pipeline for an authenticated user. The returned
// JSON is either the freshly committed response or, on an idempotent retry,
// the stored response byte for byte.
func (g *Gateway) Buy(ctx context.Context, user *model.User, req *BuyRequest) (json.RawMessage, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}
	domain := req.Domain
	_, tld := splitDomain(domain)
	if !g.cfg.TLDAllowed(tld) {
		return nil, E(KindValidationError, "tld %q is not allowed", tld)
	}

	lbl, _ := splitDomain(domain)
	if res := label.Check(lbl, req.AllowUnicode); !res.Safe {
		return nil, E(KindUnsafeLabel, "label %q rejected", lbl).
			WithDetails(map[string]any{"reasons": res.Reasons})
	}

	quotedCents := model.Cents(req.QuotedTotalUSD)
	if quotedCents > model.Cents(g.cfg.MaxPerTxnUSD) {
		return nil, E(KindSpendCapExceeded,
			"quoted total %.2f exceeds the %.2f per-transaction cap",
			req.QuotedTotalUSD, g.cfg.MaxPerTxnUSD)
	}

	// Provisional quote: catches premium pricing before any state changes.
	provisional, err := g.driver.Quote(ctx, domain, req.Years, req.privacy())
	g.countRegistrarCall("quote", err)
	if err != nil {
		return nil, mapDriverError(err)
	}
	if provisional.Premium && !req.AllowPremium {
		return nil, E(KindPremiumNotAllowed, "%s is premium priced; set allow_premium to proceed", domain)
	}

	now := g.now()
	acct := user.ID
	capCents := model.Cents(g.cfg.MaxDailyUSD)
	exceeds, err := g.store.SpendWouldExceed(acct, now, quotedCents, capCents)
	if err != nil {
		return nil, Classify(err)
	}
	if exceeds {
		remaining, err := g.store.SpendRemaining(acct, now, capCents)
		if err != nil {
			return nil, Classify(err)
		}
		return nil, E(KindDailyCapExceeded, "purchase would exceed the daily spend cap").
			WithDetails(map[string]any{"remaining": model.USD(remaining)})
	}

	digest := Digest(domain, req.Years, req.privacy(), req.QuotedTotalUSD)
	key := "buy:" + domain + ":" + req.IdempotencyKey

	existing, err := g.store.IdemBegin(key, now)
	if err != nil {
		return nil, Classify(err)
	}
	if existing != nil {
		if existing.Digest != digest {
			return nil, E(KindIdempotencyMismatch, "idempotency key replayed with different parameters")
		}
		g.metrics.Purchases.WithLabelValues("replay").Inc()
		return json.RawMessage(existing.ResponseJSON), nil
	}

	if err := g.locks.Acquire(ctx, key); err != nil {
		return nil, Classify(err)
	}
	defer g.locks.Release(key)

	// A waiter may have been queued behind a holder that committed this key.
	existing, err = g.store.IdemBegin(key, g.now())
	if err != nil {
		return nil, Classify(err)
	}
	if existing != nil {
		if existing.Digest != digest {
			return nil, E(KindIdempotencyMismatch, "idempotency key replayed with different parameters")
		}
		g.metrics.Purchases.WithLabelValues("replay").Inc()
		return json.RawMessage(existing.ResponseJSON), nil
	}

	// The guarded region must run to completion even if the client hangs up;
	// the registrar call may succeed upstream regardless.
	raw, err := g.buyGuarded(context.WithoutCancel(ctx), user, req, key, digest)
	if err != nil {
		if failErr := g.store.IdemFail(key); failErr != nil {
			logWarn("idempotency slot %s not cleared: %v", key, failErr)
		}
		gerr := Classify(err)
		g.store.AuditAppend(user.ID, store.AuditBuyFail, map[string]any{
			"domain":  domain,
			"error":   gerr.Kind,
			"message": gerr.Message,
		})
		g.metrics.Purchases.WithLabelValues("failure").Inc()
		return nil, gerr
	}
	g.metrics.Purchases.WithLabelValues("success").Inc()
	return raw, nil
}

// buyGuarded is the region between idempotency reservation and commit.
// Any error here clears the slot so a client retry can run again.
func (g *Gateway) buyGuarded(ctx context.Context, user *model.User, req *BuyRequest, key, digest string) (json.RawMessage, error) {
	domain := req.Domain

	fresh, err := g.driver.Quote(ctx, domain, req.Years, req.privacy())
	g.countRegistrarCall("quote", err)
	if err != nil {
		return nil, mapDriverError(err)
	}
	drift := model.Cents(fresh.TotalUSD) - model.Cents(req.QuotedTotalUSD)
	if drift < 0 {
		drift = -drift
	}
	if drift > driftToleranceCents {
		return nil, E(KindPriceDrift, "server quote %.2f drifted from quoted total %.2f",
			fresh.TotalUSD, req.QuotedTotalUSD).
			WithDetails(map[string]any{"drift": model.USD(drift), "server_total": fresh.TotalUSD})
	}

	result, err := g.driver.Register(ctx, registrar.RegisterRequest{
		Domain:  domain,
		Years:   req.Years,
		Privacy: req.privacy(),
		Contact: g.cfg.RegistrantContact,
	})
	g.countRegistrarCall("register", err)
	if err != nil {
		return nil, mapDriverError(err)
	}
	if !result.Success {
		return nil, E(KindValidationError, "registration rejected: %s", result.Message)
	}

	now := g.now()
	domainID := uuid.NewString()
	if prev, err := g.store.GetDomainByName(domain); err != nil {
		return nil, Classify(err)
	} else if prev != nil {
		domainID = prev.ID
	}

	if err := g.store.UpsertDomain(model.Domain{
		ID:        domainID,
		Name:      domain,
		UserID:    user.ID,
		Registrar: g.driver.Name(),
		Status:    model.DomainPurchased,
		Privacy:   req.privacy(),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, Classify(err)
	}

	if err := g.store.InsertPurchase(model.Purchase{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		DomainID:   domainID,
		Registrar:  g.driver.Name(),
		OrderID:    result.OrderID,
		Years:      req.Years,
		TotalCents: model.Cents(result.ChargedTotalUSD),
		Premium:    fresh.Premium,
		CreatedAt:  now,
	}); err != nil {
		if store.IsUniqueViolation(err) {
			// Another instance already recorded this registrar order.
			return nil, E(KindValidationError, "order %s already recorded", result.OrderID)
		}
		return nil, Classify(err)
	}

	// The registrar has charged us whether or not DNS lands, so the ledger
	// entry goes in before provisioning.
	if err := g.store.SpendAdd(user.ID, now, model.Cents(result.ChargedTotalUSD)); err != nil {
		logWarn("spend add for %s failed: %v", user.ID, err)
	}

	resp := BuyResponse{
		OrderID:         result.OrderID,
		ChargedTotalUSD: result.ChargedTotalUSD,
		Registrar:       g.driver.Name(),
		NameserverMode:  req.NameserverMode,
		DomainID:        domainID,
	}

	if req.NameserverMode == NSModeCustom {
		err := g.driver.SetNameservers(ctx, domain, req.Nameservers)
		g.countRegistrarCall("set_nameservers", err)
		if err != nil {
			return nil, mapDriverError(err)
		}
	} else {
		tpl, ok := dnstemplate.Lookup(req.DNSTemplateID)
		if !ok {
			return nil, E(KindUnknownDnsTemplate, "unknown dns template %q", req.DNSTemplateID)
		}
		err := g.driver.ApplyRecords(ctx, domain, tpl.Render(domain))
		g.countRegistrarCall("apply_records", err)
		if err != nil {
			return nil, mapDriverError(err)
		}
		if err := g.store.SetDomainStatus(domainID, model.DomainDNSApplied, g.now()); err != nil {
			return nil, Classify(err)
		}
		resp.DNSTemplateID = req.DNSTemplateID
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, Classify(err)
	}
	if err := g.store.IdemCommit(key, digest, string(raw), g.cfg.IdemTTL, g.now()); err != nil {
		return nil, Classify(err)
	}

	g.store.AuditAppend(user.ID, store.AuditBuySuccess, map[string]any{
		"domain":            domain,
		"order_id":          result.OrderID,
		"charged_total_usd": result.ChargedTotalUSD,
	})
	return raw, nil
}
