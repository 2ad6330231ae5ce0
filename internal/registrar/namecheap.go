package registrar

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const namecheapBaseURL = "https://api.namecheap.com/xml.response"

// Namecheap is the XML/GET driver. All commands go through a single endpoint
// with the command name and credentials as query parameters. Like Porkbun,
// mutating calls are simulated in dry-run mode.
type Namecheap struct {
	baseURL  string
	apiUser  string
	apiKey   string
	username string
	clientIP string
	dryRun   bool
	doer     *httpDoer
	pricing  *PricingCache
}

// NewNamecheap creates the Namecheap driver. username is the account the
// commands run against (the API distinguishes it from the API user); when
// empty it defaults to apiUser.
func NewNamecheap(apiUser, apiKey, username, clientIP string, dryRun bool) *Namecheap {
	if username == "" {
		username = apiUser
	}
	return &Namecheap{
		baseURL:  namecheapBaseURL,
		apiUser:  apiUser,
		apiKey:   apiKey,
		username: username,
		clientIP: clientIP,
		dryRun:   dryRun,
		doer:     newHTTPDoer(30 * time.Second),
		pricing:  NewPricingCache(),
	}
}

func (n *Namecheap) Name() string { return "namecheap" }

// DryRun reports whether mutating calls are simulated.
func (n *Namecheap) DryRun() bool { return n.dryRun }

// ncErrors is the shared error block of every ApiResponse.
type ncErrors struct {
	Error []struct {
		Number string `xml:"Number,attr"`
		Text   string `xml:",chardata"`
	} `xml:"Error"`
}

func (e ncErrors) first() string {
	if len(e.Error) == 0 {
		return "unknown namecheap error"
	}
	return strings.TrimSpace(e.Error[0].Text)
}

// get issues one GET request for the named command and decodes the XML
// response into out.
func (n *Namecheap) get(ctx context.Context, command string, params url.Values, out any) error {
	q := url.Values{}
	q.Set("ApiUser", n.apiUser)
	q.Set("ApiKey", n.apiKey)
	q.Set("UserName", n.username)
	q.Set("ClientIp", n.clientIP)
	q.Set("Command", command)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	target := n.baseURL + "?" + q.Encode()

	raw, err := n.doer.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
	if err != nil {
		return err
	}

	if err := xml.Unmarshal(raw, out); err != nil {
		return wrapError(KindParseError, err, "decode %s response", command)
	}
	return nil
}

type ncCheckResponse struct {
	XMLName         xml.Name `xml:"ApiResponse"`
	Status          string   `xml:"Status,attr"`
	Errors          ncErrors `xml:"Errors"`
	CommandResponse struct {
		Results []struct {
			Domain                   string `xml:"Domain,attr"`
			Available                string `xml:"Available,attr"`
			IsPremiumName            string `xml:"IsPremiumName,attr"`
			PremiumRegistrationPrice string `xml:"PremiumRegistrationPrice,attr"`
		} `xml:"DomainCheckResult"`
	} `xml:"CommandResponse"`
}

// CheckAvailability checks all domains in a single batched call; the API
// accepts a comma-separated domain list. Results come back in input order.
func (n *Namecheap) CheckAvailability(ctx context.Context, domains []string) ([]Availability, error) {
	params := url.Values{}
	params.Set("DomainList", strings.Join(domains, ","))

	var out ncCheckResponse
	if err := n.get(ctx, "namecheap.domains.check", params, &out); err != nil {
		return nil, err
	}
	if out.Status == "ERROR" {
		return nil, newError(KindHTTPError, "domains.check: %s", out.Errors.first())
	}

	byDomain := make(map[string]Availability, len(out.CommandResponse.Results))
	for _, r := range out.CommandResponse.Results {
		price := 0.0
		if r.PremiumRegistrationPrice != "" {
			if parsed, err := strconv.ParseFloat(r.PremiumRegistrationPrice, 64); err == nil {
				price = parsed
			}
		}
		byDomain[strings.ToLower(r.Domain)] = Availability{
			Domain:    strings.ToLower(r.Domain),
			Available: strings.EqualFold(r.Available, "true"),
			PriceUSD:  round2(price),
			Premium:   strings.EqualFold(r.IsPremiumName, "true"),
		}
	}

	results := make([]Availability, len(domains))
	for i, d := range domains {
		entry, ok := byDomain[strings.ToLower(d)]
		if !ok {
			return nil, newError(KindParseError, "domains.check: no result for %q", d)
		}
		results[i] = entry
	}
	return results, nil
}

type ncPricingResponse struct {
	XMLName         xml.Name `xml:"ApiResponse"`
	Status          string   `xml:"Status,attr"`
	Errors          ncErrors `xml:"Errors"`
	CommandResponse struct {
		Result struct {
			ProductTypes []struct {
				Name       string `xml:"Name,attr"`
				Categories []struct {
					Name     string `xml:"Name,attr"`
					Products []struct {
						Name   string `xml:"Name,attr"`
						Prices []struct {
							Duration     string `xml:"Duration,attr"`
							DurationType string `xml:"DurationType,attr"`
							Price        string `xml:"Price,attr"`
						} `xml:"Price"`
					} `xml:"Product"`
				} `xml:"ProductCategory"`
			} `xml:"ProductType"`
		} `xml:"UserGetPricingResult"`
	} `xml:"CommandResponse"`
}

// tldPricing fetches the one-year register price for tld. Whois privacy is
// bundled free with registrations, so the privacy surcharge is zero.
func (n *Namecheap) tldPricing(ctx context.Context, tld string) (TLDPricing, error) {
	if cached, ok := n.pricing.Get(tld); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("ProductType", "DOMAIN")
	params.Set("ProductCategory", "REGISTER")
	params.Set("ProductName", strings.ToUpper(tld))

	var out ncPricingResponse
	if err := n.get(ctx, "namecheap.users.getPricing", params, &out); err != nil {
		return TLDPricing{}, err
	}
	if out.Status == "ERROR" {
		return TLDPricing{}, newError(KindHTTPError, "users.getPricing: %s", out.Errors.first())
	}

	for _, pt := range out.CommandResponse.Result.ProductTypes {
		for _, cat := range pt.Categories {
			if !strings.EqualFold(cat.Name, "register") {
				continue
			}
			for _, prod := range cat.Products {
				if !strings.EqualFold(prod.Name, tld) {
					continue
				}
				for _, price := range prod.Prices {
					if price.Duration != "1" || !strings.EqualFold(price.DurationType, "YEAR") {
						continue
					}
					parsed, err := strconv.ParseFloat(price.Price, 64)
					if err != nil {
						return TLDPricing{}, wrapError(KindParseError, err, "users.getPricing %s price %q", tld, price.Price)
					}
					pricing := TLDPricing{PriceUSD: round2(parsed)}
					n.pricing.Set(tld, pricing)
					return pricing, nil
				}
			}
		}
	}
	return TLDPricing{}, newError(KindTLDNotSupported, "tld %q not in namecheap pricing table", tld)
}

// Quote prices a registration. Premium domains carry the per-domain premium
// price from domains.check instead of the TLD base price.
func (n *Namecheap) Quote(ctx context.Context, domain string, years int, privacy bool) (*Quote, error) {
	_, tld := splitDomain(domain)
	tldPrice, err := n.tldPricing(ctx, tld)
	if err != nil {
		return nil, err
	}

	regPrice := tldPrice.PriceUSD
	premium := false
	if avails, err := n.CheckAvailability(ctx, []string{domain}); err == nil && len(avails) == 1 {
		premium = avails[0].Premium
		if premium && avails[0].PriceUSD > 0 {
			regPrice = avails[0].PriceUSD
		}
	}

	return buildQuote(regPrice, tldPrice.PrivacyPriceUSD, years, privacy, premium), nil
}

type ncCreateResponse struct {
	XMLName         xml.Name `xml:"ApiResponse"`
	Status          string   `xml:"Status,attr"`
	Errors          ncErrors `xml:"Errors"`
	CommandResponse struct {
		Result struct {
			Domain        string `xml:"Domain,attr"`
			Registered    string `xml:"Registered,attr"`
			ChargedAmount string `xml:"ChargedAmount,attr"`
			OrderID       string `xml:"OrderID,attr"`
		} `xml:"DomainCreateResult"`
	} `xml:"CommandResponse"`
}

// contactParams flattens the registrant contact into the four contact sets
// domains.create requires.
func contactParams(req RegisterRequest) url.Values {
	params := url.Values{}
	for _, role := range []string{"Registrant", "Tech", "Admin", "AuxBilling"} {
		params.Set(role+"FirstName", req.Contact.FirstName)
		params.Set(role+"LastName", req.Contact.LastName)
		params.Set(role+"Address1", req.Contact.Address)
		params.Set(role+"City", req.Contact.City)
		params.Set(role+"StateProvince", req.Contact.State)
		params.Set(role+"PostalCode", req.Contact.Zip)
		params.Set(role+"Country", req.Contact.Country)
		params.Set(role+"Phone", req.Contact.Phone)
		params.Set(role+"EmailAddress", req.Contact.Email)
	}
	return params
}

// Register creates the domain. Dry-run synthesizes the order without any
// upstream call.
func (n *Namecheap) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if n.dryRun {
		q, err := n.Quote(ctx, req.Domain, req.Years, req.Privacy)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{
			OrderID:         "NC-DRYRUN-" + strings.ToUpper(uuid.NewString()[:8]),
			ChargedTotalUSD: q.TotalUSD,
			Success:         true,
			Message:         "dry run: registration simulated",
		}, nil
	}

	params := contactParams(req)
	params.Set("DomainName", req.Domain)
	params.Set("Years", strconv.Itoa(req.Years))
	if req.Privacy {
		params.Set("AddFreeWhoisguard", "yes")
		params.Set("WGEnabled", "yes")
	}

	var out ncCreateResponse
	if err := n.get(ctx, "namecheap.domains.create", params, &out); err != nil {
		return nil, err
	}
	if out.Status == "ERROR" {
		return &RegisterResult{Success: false, Message: out.Errors.first()}, nil
	}
	if !strings.EqualFold(out.CommandResponse.Result.Registered, "true") {
		return &RegisterResult{Success: false, Message: "registration not confirmed"}, nil
	}

	charged := 0.0
	if out.CommandResponse.Result.ChargedAmount != "" {
		parsed, err := strconv.ParseFloat(out.CommandResponse.Result.ChargedAmount, 64)
		if err != nil {
			return nil, wrapError(KindParseError, err, "domains.create charged amount %q", out.CommandResponse.Result.ChargedAmount)
		}
		charged = parsed
	}
	return &RegisterResult{
		OrderID:         out.CommandResponse.Result.OrderID,
		ChargedTotalUSD: round2(charged),
		Success:         true,
	}, nil
}

type ncInfoResponse struct {
	XMLName         xml.Name `xml:"ApiResponse"`
	Status          string   `xml:"Status,attr"`
	Errors          ncErrors `xml:"Errors"`
	CommandResponse struct {
		Result struct {
			Status string `xml:"Status,attr"`
		} `xml:"DomainGetInfoResult"`
	} `xml:"CommandResponse"`
}

// Status projects the registrar-side domain state.
func (n *Namecheap) Status(ctx context.Context, domain string) (*Status, error) {
	params := url.Values{}
	params.Set("DomainName", domain)

	var out ncInfoResponse
	if err := n.get(ctx, "namecheap.domains.getInfo", params, &out); err != nil {
		return nil, err
	}
	if out.Status == "ERROR" {
		msg := out.Errors.first()
		if strings.Contains(strings.ToLower(msg), "not found") {
			return &Status{State: StateNotFound, Details: msg}, nil
		}
		return &Status{State: StateError, Details: msg}, nil
	}

	switch strings.ToUpper(out.CommandResponse.Result.Status) {
	case "OK", "LOCKED":
		return &Status{State: StateActive}, nil
	case "EXPIRED":
		return &Status{State: StateExpired}, nil
	default:
		return &Status{State: StateError, Details: fmt.Sprintf("unknown registrar status %q", out.CommandResponse.Result.Status)}, nil
	}
}

type ncSetCustomResponse struct {
	XMLName         xml.Name `xml:"ApiResponse"`
	Status          string   `xml:"Status,attr"`
	Errors          ncErrors `xml:"Errors"`
	CommandResponse struct {
		Result struct {
			Updated string `xml:"Updated,attr"`
		} `xml:"DomainDNSSetCustomResult"`
	} `xml:"CommandResponse"`
}

// SetNameservers replaces the domain's delegation with custom nameservers.
func (n *Namecheap) SetNameservers(ctx context.Context, domain string, nameservers []string) error {
	if err := validateNameservers(nameservers); err != nil {
		return err
	}
	if n.dryRun {
		return nil
	}

	label, tld := splitDomain(domain)
	params := url.Values{}
	params.Set("SLD", label)
	params.Set("TLD", tld)
	params.Set("Nameservers", strings.Join(nameservers, ","))

	var out ncSetCustomResponse
	if err := n.get(ctx, "namecheap.domains.dns.setCustom", params, &out); err != nil {
		return err
	}
	if out.Status == "ERROR" {
		return newError(KindHTTPError, "dns.setCustom %s: %s", domain, out.Errors.first())
	}
	if !strings.EqualFold(out.CommandResponse.Result.Updated, "true") {
		return newError(KindHTTPError, "dns.setCustom %s: update not confirmed", domain)
	}
	return nil
}

type ncSetHostsResponse struct {
	XMLName         xml.Name `xml:"ApiResponse"`
	Status          string   `xml:"Status,attr"`
	Errors          ncErrors `xml:"Errors"`
	CommandResponse struct {
		Result struct {
			IsSuccess string `xml:"IsSuccess,attr"`
		} `xml:"DomainDNSSetHostsResult"`
	} `xml:"CommandResponse"`
}

// ApplyRecords replaces the domain's host records in one setHosts call. The
// API is all-or-nothing, so partial failure cannot occur here.
func (n *Namecheap) ApplyRecords(ctx context.Context, domain string, records []Record) error {
	if n.dryRun {
		return nil
	}

	label, tld := splitDomain(domain)
	params := url.Values{}
	params.Set("SLD", label)
	params.Set("TLD", tld)
	for i, rec := range records {
		idx := strconv.Itoa(i + 1)
		params.Set("HostName"+idx, rec.Name)
		params.Set("RecordType"+idx, rec.Type)
		params.Set("Address"+idx, rec.Value)
		params.Set("TTL"+idx, strconv.Itoa(rec.TTL))
		if rec.Type == "MX" {
			params.Set("MXPref"+idx, strconv.Itoa(rec.Prio))
		}
	}

	var out ncSetHostsResponse
	if err := n.get(ctx, "namecheap.domains.dns.setHosts", params, &out); err != nil {
		return err
	}
	if out.Status == "ERROR" {
		return newError(KindHTTPError, "dns.setHosts %s: %s", domain, out.Errors.first())
	}
	if !strings.EqualFold(out.CommandResponse.Result.IsSuccess, "true") {
		return newError(KindHTTPError, "dns.setHosts %s: update not confirmed", domain)
	}
	return nil
}
