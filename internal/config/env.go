// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Provider names accepted for DEFAULT_PROVIDER.
const (
	ProviderPorkbun   = "porkbun"
	ProviderNamecheap = "namecheap"
)

// Contact holds the registrant contact fields passed to registrar create calls.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	State     string
	Zip       string
	Country   string
}

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Network
	Port           int
	RequestTimeout time.Duration
	MaxBodyBytes   int

	// Storage
	StateDir string

	// Registrar credentials
	PorkbunAPIKey      string
	PorkbunSecretKey   string
	NamecheapAPIUser   string
	NamecheapAPIKey    string
	NamecheapUsername  string
	NamecheapClientIP  string
	DefaultProvider    string
	DryRun             bool
	RegistrantContact  Contact

	// Safety limits
	AllowlistTLDs       []string
	MaxPerTxnUSD        float64
	MaxDailyUSD         float64
	RateLimitRPM        int
	RateLimitBurst      int
	MaxDomainsPerSearch int

	// Maintenance
	IdemTTL            time.Duration
	SpendRetentionDays int
	SweepSchedule      string
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any value is invalid; the caller exits with code 1.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Network ---
	cfg.Port = envInt("PORT", 8080, &errs)
	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", 15*time.Second, &errs)
	cfg.MaxBodyBytes = envInt("API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Storage ---
	cfg.StateDir = envStr("STATE_DIR", "/var/lib/winston")

	// --- Registrar ---
	cfg.PorkbunAPIKey = envStr("PORKBUN_API_KEY", "")
	cfg.PorkbunSecretKey = envStr("PORKBUN_SECRET_KEY", "")
	cfg.NamecheapAPIUser = envStr("NAMECHEAP_API_USER", "")
	cfg.NamecheapAPIKey = envStr("NAMECHEAP_API_KEY", "")
	cfg.NamecheapUsername = envStr("NAMECHEAP_USERNAME", "")
	cfg.NamecheapClientIP = envStr("NAMECHEAP_CLIENT_IP", "")
	cfg.DefaultProvider = strings.ToLower(envStr("DEFAULT_PROVIDER", ProviderPorkbun))

	// Dry-run is ON unless DRY_RUN is exactly "false". The default errs on the
	// side of never issuing a mutating registrar call; /health surfaces the
	// effective value so operators can detect it.
	cfg.DryRun = os.Getenv("DRY_RUN") != "false"

	cfg.RegistrantContact = Contact{
		FirstName: envStr("WINSTON_CONTACT_FIRST_NAME", ""),
		LastName:  envStr("WINSTON_CONTACT_LAST_NAME", ""),
		Email:     envStr("WINSTON_CONTACT_EMAIL", ""),
		Phone:     envStr("WINSTON_CONTACT_PHONE", ""),
		Address:   envStr("WINSTON_CONTACT_ADDRESS", ""),
		City:      envStr("WINSTON_CONTACT_CITY", ""),
		State:     envStr("WINSTON_CONTACT_STATE", ""),
		Zip:       envStr("WINSTON_CONTACT_ZIP", ""),
		Country:   envStr("WINSTON_CONTACT_COUNTRY", "US"),
	}

	// --- Safety limits ---
	cfg.AllowlistTLDs = envTLDList("ALLOWLIST_TLDS", &errs)
	cfg.MaxPerTxnUSD = envFloat("MAX_PER_TXN_USD", 1000, &errs)
	cfg.MaxDailyUSD = envFloat("MAX_DAILY_USD", 5000, &errs)
	cfg.RateLimitRPM = envInt("RATE_LIMIT_RPM", 60, &errs)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", 30, &errs)
	cfg.MaxDomainsPerSearch = envInt("MAX_DOMAINS_PER_SEARCH", 20, &errs)

	// --- Maintenance ---
	idemTTLSeconds := envInt("IDEM_TTL_SECONDS", 3600, &errs)
	cfg.IdemTTL = time.Duration(idemTTLSeconds) * time.Second
	cfg.SpendRetentionDays = envInt("SPEND_RETENTION_DAYS", 90, &errs)
	cfg.SweepSchedule = envStr("SWEEP_SCHEDULE", "@every 5m")

	// --- Validation ---
	validatePort("PORT", cfg.Port, &errs)
	validatePositive("API_MAX_BODY_BYTES", cfg.MaxBodyBytes, &errs)
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT must be positive")
	}

	switch cfg.DefaultProvider {
	case ProviderPorkbun, ProviderNamecheap:
	default:
		errs = append(errs, fmt.Sprintf(
			"DEFAULT_PROVIDER: invalid value %q (allowed: %s, %s)",
			cfg.DefaultProvider, ProviderPorkbun, ProviderNamecheap))
	}

	if cfg.MaxPerTxnUSD <= 0 {
		errs = append(errs, "MAX_PER_TXN_USD must be positive")
	}
	if cfg.MaxDailyUSD <= 0 {
		errs = append(errs, "MAX_DAILY_USD must be positive")
	}
	if cfg.MaxDailyUSD < cfg.MaxPerTxnUSD {
		errs = append(errs, "MAX_DAILY_USD must be greater than or equal to MAX_PER_TXN_USD")
	}
	validatePositive("RATE_LIMIT_RPM", cfg.RateLimitRPM, &errs)
	validatePositive("RATE_LIMIT_BURST", cfg.RateLimitBurst, &errs)
	validatePositive("MAX_DOMAINS_PER_SEARCH", cfg.MaxDomainsPerSearch, &errs)
	validatePositive("IDEM_TTL_SECONDS", idemTTLSeconds, &errs)
	validatePositive("SPEND_RETENTION_DAYS", cfg.SpendRetentionDays, &errs)

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("SWEEP_SCHEDULE: invalid cron expression %q: %v", cfg.SweepSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// TLDAllowed reports whether tld passes the allowlist. An empty allowlist
// permits every TLD.
func (c *EnvConfig) TLDAllowed(tld string) bool {
	if len(c.AllowlistTLDs) == 0 {
		return true
	}
	tld = strings.ToLower(tld)
	for _, allowed := range c.AllowlistTLDs {
		if tld == allowed {
			return true
		}
	}
	return false
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envFloat(key string, defaultVal float64, errs *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid number %q", key, v))
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

// envTLDList parses a comma-separated TLD list. Entries are lowercased and
// must be letters only. Empty input means no allowlist.
func envTLDList(key string, errs *[]string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		tld := strings.ToLower(strings.TrimSpace(p))
		if tld == "" {
			continue
		}
		if !isAlpha(tld) {
			*errs = append(*errs, fmt.Sprintf("%s: invalid TLD %q (must be letters only)", key, tld))
			continue
		}
		out = append(out, tld)
	}
	return out
}

func isAlpha(s string) bool {
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return len(s) > 0
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
