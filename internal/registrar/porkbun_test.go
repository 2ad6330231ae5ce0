package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPorkbun(t *testing.T, handler http.Handler, dryRun bool) (*Porkbun, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewPorkbun("pk", "sk", dryRun)
	p.baseURL = srv.URL
	p.doer.sleep = func(context.Context, time.Duration) error { return nil }
	return p, srv
}

func pbJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// pbPricingHandler serves a pricing table for com and io.
func pbPricingHandler(t *testing.T) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		pbJSON(t, w, map[string]any{
			"status": "SUCCESS",
			"pricing": map[string]any{
				"com": map[string]string{"registration": "11.06", "privacy": "0"},
				"io":  map[string]string{"registration": "49.50", "privacy": "2.50"},
			},
		})
	}
}

func TestPorkbun_CheckAvailability(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["apikey"] != "pk" || body["secretapikey"] != "sk" {
			t.Error("credentials missing from payload")
		}

		domain := strings.TrimPrefix(r.URL.Path, "/domain/checkDomain/")
		avail := "yes"
		if domain == "taken.com" {
			avail = "no"
		}
		pbJSON(t, w, map[string]any{
			"status": "SUCCESS",
			"response": map[string]string{
				"avail":   avail,
				"price":   "11.06",
				"premium": "no",
			},
		})
	}), false)

	got, err := p.CheckAvailability(context.Background(), []string{"open.com", "taken.com"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results: got %d, want 2", len(got))
	}
	if !got[0].Available || got[0].Domain != "open.com" || got[0].PriceUSD != 11.06 {
		t.Fatalf("open.com: got %+v", got[0])
	}
	if got[1].Available {
		t.Fatalf("taken.com reported available")
	}
}

func TestPorkbun_QuoteUsesPerDomainPremiumPrice(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/pricing/get":
			pbPricingHandler(t)(w)
		case strings.HasPrefix(r.URL.Path, "/domain/checkDomain/"):
			pbJSON(t, w, map[string]any{
				"status": "SUCCESS",
				"response": map[string]string{
					"avail":   "yes",
					"price":   "250.00",
					"premium": "yes",
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}), false)

	q, err := p.Quote(context.Background(), "rare.com", 1, false)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.Premium {
		t.Fatal("premium flag not taken from per-domain check")
	}
	// 250.00 + 0.18 = 250.18
	if q.TotalUSD != 250.18 {
		t.Fatalf("total: got %v, want 250.18", q.TotalUSD)
	}
}

func TestPorkbun_QuoteUnsupportedTLD(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pricing/get" {
			pbPricingHandler(t)(w)
			return
		}
		pbJSON(t, w, map[string]any{"status": "SUCCESS", "response": map[string]string{"avail": "yes"}})
	}), false)

	_, err := p.Quote(context.Background(), "site.zz", 1, false)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindTLDNotSupported {
		t.Fatalf("err: got %v, want %s", err, KindTLDNotSupported)
	}
}

func TestPorkbun_PricingCacheAvoidsRefetch(t *testing.T) {
	var pricingCalls atomic.Int32
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pricing/get" {
			pricingCalls.Add(1)
			pbPricingHandler(t)(w)
			return
		}
		pbJSON(t, w, map[string]any{
			"status":   "SUCCESS",
			"response": map[string]string{"avail": "yes", "price": "11.06", "premium": "no"},
		})
	}), false)

	for i := 0; i < 3; i++ {
		if _, err := p.Quote(context.Background(), "cache.com", 1, false); err != nil {
			t.Fatalf("quote %d: %v", i, err)
		}
	}
	if pricingCalls.Load() != 1 {
		t.Fatalf("pricing calls: got %d, want 1", pricingCalls.Load())
	}
}

func TestPorkbun_DryRunNeverMutates(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/pricing/get":
			pbPricingHandler(t)(w)
		case strings.HasPrefix(r.URL.Path, "/domain/checkDomain/"):
			pbJSON(t, w, map[string]any{
				"status":   "SUCCESS",
				"response": map[string]string{"avail": "yes", "price": "49.50", "premium": "no"},
			})
		default:
			// Any create/update call in dry-run mode is a bug.
			t.Errorf("mutating call reached API in dry-run: %s", r.URL.Path)
		}
	}), true)

	res, err := p.Register(context.Background(), RegisterRequest{Domain: "safe.io", Years: 1, Privacy: true})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !res.Success {
		t.Fatalf("dry-run register failed: %+v", res)
	}
	if !strings.HasPrefix(res.OrderID, "PB-DRYRUN-") {
		t.Fatalf("order id: got %q, want PB-DRYRUN- prefix", res.OrderID)
	}
	// 49.50 + 0.18 + 2.50 = 52.18
	if res.ChargedTotalUSD != 52.18 {
		t.Fatalf("charged total: got %v, want 52.18", res.ChargedTotalUSD)
	}

	if err := p.SetNameservers(context.Background(), "safe.io", []string{"ns1.x.com", "ns2.x.com"}); err != nil {
		t.Fatalf("set nameservers: %v", err)
	}
	if err := p.ApplyRecords(context.Background(), "safe.io", []Record{{Type: "A", Name: "@", Value: "1.2.3.4", TTL: 600}}); err != nil {
		t.Fatalf("apply records: %v", err)
	}
}

func TestPorkbun_Register(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/domain/create/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["years"] != float64(2) {
			t.Errorf("years: got %v", body["years"])
		}
		pbJSON(t, w, map[string]any{
			"status":  "SUCCESS",
			"orderId": "PB-123456",
			"total":   "22.48",
		})
	}), false)

	res, err := p.Register(context.Background(), RegisterRequest{Domain: "new.com", Years: 2})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.OrderID != "PB-123456" || res.ChargedTotalUSD != 22.48 || !res.Success {
		t.Fatalf("result: %+v", res)
	}
}

func TestPorkbun_RegisterAPIFailure(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pbJSON(t, w, map[string]any{"status": "ERROR", "message": "domain is not available"})
	}), false)

	res, err := p.Register(context.Background(), RegisterRequest{Domain: "gone.com", Years: 1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Success {
		t.Fatal("failed registration reported success")
	}
	if res.Message != "domain is not available" {
		t.Fatalf("message: got %q", res.Message)
	}
}

func TestPorkbun_Status(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		domain := strings.TrimPrefix(r.URL.Path, "/domain/getInfo/")
		if domain == "missing.com" {
			pbJSON(t, w, map[string]any{"status": "ERROR", "message": "Domain not found in account"})
			return
		}
		pbJSON(t, w, map[string]any{
			"status": "SUCCESS",
			"domain": map[string]string{"status": "ACTIVE"},
		})
	}), false)

	st, err := p.Status(context.Background(), "live.com")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateActive {
		t.Fatalf("state: got %s, want %s", st.State, StateActive)
	}

	st, err = p.Status(context.Background(), "missing.com")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateNotFound {
		t.Fatalf("state: got %s, want %s", st.State, StateNotFound)
	}
}

func TestPorkbun_ApplyRecordsPartialFailure(t *testing.T) {
	var calls atomic.Int32
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			pbJSON(t, w, map[string]any{"status": "SUCCESS"})
			return
		}
		pbJSON(t, w, map[string]any{"status": "ERROR", "message": "invalid record"})
	}), false)

	records := []Record{
		{Type: "A", Name: "@", Value: "1.2.3.4", TTL: 600},
		{Type: "MX", Name: "@", Value: "mail.x.com", TTL: 600, Prio: 10},
	}
	err := p.ApplyRecords(context.Background(), "web.com", records)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindDNSApplyPartialFailure {
		t.Fatalf("err: got %v, want %s", err, KindDNSApplyPartialFailure)
	}
	if !strings.Contains(rerr.Message, "1 of 2") {
		t.Fatalf("message: got %q", rerr.Message)
	}
}

func TestPorkbun_ApplyRecordsAllFail(t *testing.T) {
	p, _ := newTestPorkbun(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pbJSON(t, w, map[string]any{"status": "ERROR", "message": "invalid record"})
	}), false)

	err := p.ApplyRecords(context.Background(), "web.com", []Record{{Type: "A", Name: "@", Value: "1.2.3.4", TTL: 600}})
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindHTTPError {
		t.Fatalf("err: got %v, want plain %s when nothing applied", err, KindHTTPError)
	}
}
