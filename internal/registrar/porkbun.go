package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const porkbunBaseURL = "https://api.porkbun.com/api/json/v3"

// dryRunOrderPrefix distinguishes synthesized order ids from real ones.
const dryRunOrderPrefix = "PB-DRYRUN-"

// Porkbun is the JSON/POST driver. When dryRun is set, mutating calls
// (Register, SetNameservers, ApplyRecords) never reach the API and return
// synthesized success values.
type Porkbun struct {
	baseURL   string
	apiKey    string
	secretKey string
	dryRun    bool
	doer      *httpDoer
	pricing   *PricingCache
}

// NewPorkbun creates the Porkbun driver.
func NewPorkbun(apiKey, secretKey string, dryRun bool) *Porkbun {
	return &Porkbun{
		baseURL:   porkbunBaseURL,
		apiKey:    apiKey,
		secretKey: secretKey,
		dryRun:    dryRun,
		doer:      newHTTPDoer(30 * time.Second),
		pricing:   NewPricingCache(),
	}
}

func (p *Porkbun) Name() string { return "porkbun" }

// DryRun reports whether mutating calls are simulated.
func (p *Porkbun) DryRun() bool { return p.dryRun }

type pbEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// post issues one JSON POST with credentials merged into the payload and
// decodes the response into out, which must embed pbEnvelope.
func (p *Porkbun) post(ctx context.Context, path string, payload map[string]any, out any) error {
	body := map[string]any{
		"apikey":       p.apiKey,
		"secretapikey": p.secretKey,
	}
	for k, v := range payload {
		body[k] = v
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return wrapError(KindParseError, err, "encode %s payload", path)
	}

	raw, err := p.doer.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return wrapError(KindParseError, err, "decode %s response", path)
	}
	return nil
}

type pbCheckResponse struct {
	pbEnvelope
	Response struct {
		Avail   string `json:"avail"`
		Price   string `json:"price"`
		Premium string `json:"premium"`
	} `json:"response"`
}

func (p *Porkbun) checkOne(ctx context.Context, domain string) (Availability, error) {
	var out pbCheckResponse
	if err := p.post(ctx, "/domain/checkDomain/"+domain, nil, &out); err != nil {
		return Availability{}, err
	}
	if out.Status != "SUCCESS" {
		return Availability{}, newError(KindHTTPError, "checkDomain %s: %s", domain, out.Message)
	}

	price := 0.0
	if out.Response.Price != "" {
		parsed, err := strconv.ParseFloat(out.Response.Price, 64)
		if err != nil {
			return Availability{}, wrapError(KindParseError, err, "checkDomain %s price %q", domain, out.Response.Price)
		}
		price = parsed
	}
	return Availability{
		Domain:    domain,
		Available: out.Response.Avail == "yes",
		PriceUSD:  round2(price),
		Premium:   out.Response.Premium == "yes",
	}, nil
}

// CheckAvailability fans out per-domain checks with bounded concurrency.
func (p *Porkbun) CheckAvailability(ctx context.Context, domains []string) ([]Availability, error) {
	return fanOutAvailability(ctx, domains, p.checkOne)
}

type pbPricingResponse struct {
	pbEnvelope
	Pricing map[string]struct {
		Registration string `json:"registration"`
		Privacy      string `json:"privacy"`
		Premium      string `json:"premium"`
	} `json:"pricing"`
}

// tldPricing serves pricing metadata from the cache, refreshing the whole
// table from /pricing/get on a miss.
func (p *Porkbun) tldPricing(ctx context.Context, tld string) (TLDPricing, error) {
	if cached, ok := p.pricing.Get(tld); ok {
		return cached, nil
	}

	var out pbPricingResponse
	if err := p.post(ctx, "/pricing/get", nil, &out); err != nil {
		return TLDPricing{}, err
	}
	if out.Status != "SUCCESS" {
		return TLDPricing{}, newError(KindHTTPError, "pricing/get: %s", out.Message)
	}

	for name, entry := range out.Pricing {
		reg, err := strconv.ParseFloat(entry.Registration, 64)
		if err != nil {
			continue // skip malformed entries, keep the rest of the table
		}
		privacy := 0.0
		if entry.Privacy != "" {
			if parsed, err := strconv.ParseFloat(entry.Privacy, 64); err == nil {
				privacy = parsed
			}
		}
		p.pricing.Set(strings.ToLower(name), TLDPricing{
			PriceUSD:        round2(reg),
			PrivacyPriceUSD: round2(privacy),
			Premium:         entry.Premium == "yes",
		})
	}

	cached, ok := p.pricing.Get(tld)
	if !ok {
		return TLDPricing{}, newError(KindTLDNotSupported, "tld %q not in porkbun pricing table", tld)
	}
	return cached, nil
}

// Quote prices a registration. The per-domain check result takes precedence
// for price and premium; TLD pricing metadata fills the rest.
func (p *Porkbun) Quote(ctx context.Context, domain string, years int, privacy bool) (*Quote, error) {
	_, tld := splitDomain(domain)
	tldPrice, err := p.tldPricing(ctx, tld)
	if err != nil {
		return nil, err
	}

	regPrice := tldPrice.PriceUSD
	premium := tldPrice.Premium
	if avail, err := p.checkOne(ctx, domain); err == nil {
		if avail.PriceUSD > 0 {
			regPrice = avail.PriceUSD
		}
		premium = avail.Premium
	}

	return buildQuote(regPrice, tldPrice.PrivacyPriceUSD, years, privacy, premium), nil
}

type pbCreateResponse struct {
	pbEnvelope
	OrderID string `json:"orderId"`
	Total   string `json:"total"`
}

// Register creates the domain. In dry-run mode no API call is made; the
// result carries a synthesized order id and the freshly quoted total.
func (p *Porkbun) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if p.dryRun {
		q, err := p.Quote(ctx, req.Domain, req.Years, req.Privacy)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{
			OrderID:         dryRunOrderPrefix + strings.ToUpper(uuid.NewString()[:8]),
			ChargedTotalUSD: q.TotalUSD,
			Success:         true,
			Message:         "dry run: registration simulated",
		}, nil
	}

	payload := map[string]any{
		"years":         req.Years,
		"whois_privacy": req.Privacy,
		"registrant": map[string]string{
			"first_name": req.Contact.FirstName,
			"last_name":  req.Contact.LastName,
			"email":      req.Contact.Email,
			"phone":      req.Contact.Phone,
			"address":    req.Contact.Address,
			"city":       req.Contact.City,
			"state":      req.Contact.State,
			"zip":        req.Contact.Zip,
			"country":    req.Contact.Country,
		},
	}
	var out pbCreateResponse
	if err := p.post(ctx, "/domain/create/"+req.Domain, payload, &out); err != nil {
		return nil, err
	}
	if out.Status != "SUCCESS" {
		return &RegisterResult{Success: false, Message: out.Message}, nil
	}

	total := 0.0
	if out.Total != "" {
		parsed, err := strconv.ParseFloat(out.Total, 64)
		if err != nil {
			return nil, wrapError(KindParseError, err, "create %s total %q", req.Domain, out.Total)
		}
		total = parsed
	}
	return &RegisterResult{
		OrderID:         out.OrderID,
		ChargedTotalUSD: round2(total),
		Success:         true,
	}, nil
}

type pbInfoResponse struct {
	pbEnvelope
	Domain struct {
		Status string `json:"status"`
	} `json:"domain"`
}

// Status projects the registrar-side domain state.
func (p *Porkbun) Status(ctx context.Context, domain string) (*Status, error) {
	var out pbInfoResponse
	if err := p.post(ctx, "/domain/getInfo/"+domain, nil, &out); err != nil {
		return nil, err
	}
	if out.Status != "SUCCESS" {
		if strings.Contains(strings.ToLower(out.Message), "not found") {
			return &Status{State: StateNotFound, Details: out.Message}, nil
		}
		return &Status{State: StateError, Details: out.Message}, nil
	}

	switch strings.ToUpper(out.Domain.Status) {
	case "ACTIVE":
		return &Status{State: StateActive}, nil
	case "PENDING":
		return &Status{State: StatePending}, nil
	case "EXPIRED":
		return &Status{State: StateExpired}, nil
	default:
		return &Status{State: StateError, Details: fmt.Sprintf("unknown registrar status %q", out.Domain.Status)}, nil
	}
}

// SetNameservers replaces the domain's delegation. Simulated in dry-run.
func (p *Porkbun) SetNameservers(ctx context.Context, domain string, nameservers []string) error {
	if err := validateNameservers(nameservers); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}

	var out pbEnvelope
	if err := p.post(ctx, "/domain/updateNs/"+domain, map[string]any{"ns": nameservers}, &out); err != nil {
		return err
	}
	if out.Status != "SUCCESS" {
		return newError(KindHTTPError, "updateNs %s: %s", domain, out.Message)
	}
	return nil
}

// ApplyRecords creates DNS records one by one. If some records land and
// others fail, the error is classified as a partial failure so the caller
// knows state diverged.
func (p *Porkbun) ApplyRecords(ctx context.Context, domain string, records []Record) error {
	if p.dryRun {
		return nil
	}

	var firstErr error
	applied := 0
	var failed []string
	for _, rec := range records {
		payload := map[string]any{
			"name":    rec.Name,
			"type":    rec.Type,
			"content": rec.Value,
			"ttl":     strconv.Itoa(rec.TTL),
		}
		if rec.Prio > 0 {
			payload["prio"] = strconv.Itoa(rec.Prio)
		}

		var out pbEnvelope
		err := p.post(ctx, "/dns/create/"+domain, payload, &out)
		if err == nil && out.Status != "SUCCESS" {
			err = newError(KindHTTPError, "dns/create %s %s: %s", domain, rec.Type, out.Message)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, rec.Type+" "+rec.Name)
			continue
		}
		applied++
	}

	if firstErr == nil {
		return nil
	}
	if applied > 0 {
		return wrapError(KindDNSApplyPartialFailure, firstErr,
			"%d of %d records applied; failed: %s", applied, len(records), strings.Join(failed, ", "))
	}
	return firstErr
}
