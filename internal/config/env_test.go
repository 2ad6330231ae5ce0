package config

import (
	"testing"
	"time"
)

func TestLoadEnvConfig_Defaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port: got %d, want 8080", cfg.Port)
	}
	if cfg.DefaultProvider != ProviderPorkbun {
		t.Fatalf("provider: got %q", cfg.DefaultProvider)
	}
	if cfg.MaxPerTxnUSD != 1000 || cfg.MaxDailyUSD != 5000 {
		t.Fatalf("caps: got %v/%v", cfg.MaxPerTxnUSD, cfg.MaxDailyUSD)
	}
	if cfg.IdemTTL != time.Hour {
		t.Fatalf("idem ttl: got %v", cfg.IdemTTL)
	}
	if !cfg.DryRun {
		t.Fatal("dry-run must default to ON")
	}
}

func TestLoadEnvConfig_DryRunOffOnlyOnExactFalse(t *testing.T) {
	cases := map[string]bool{
		"false": false,
		"FALSE": true,
		"0":     true,
		"no":    true,
		"":      true,
	}
	for val, want := range cases {
		t.Setenv("DRY_RUN", val)
		cfg, err := LoadEnvConfig()
		if err != nil {
			t.Fatalf("load with DRY_RUN=%q: %v", val, err)
		}
		if cfg.DryRun != want {
			t.Fatalf("DRY_RUN=%q: got %v, want %v", val, cfg.DryRun, want)
		}
	}
}

func TestLoadEnvConfig_InvalidProvider(t *testing.T) {
	t.Setenv("DEFAULT_PROVIDER", "godaddy")
	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("invalid provider accepted")
	}
}

func TestLoadEnvConfig_DailyCapBelowTxnCap(t *testing.T) {
	t.Setenv("MAX_PER_TXN_USD", "2000")
	t.Setenv("MAX_DAILY_USD", "1500")
	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("daily cap below per-transaction cap accepted")
	}
}

func TestLoadEnvConfig_TLDAllowlist(t *testing.T) {
	t.Setenv("ALLOWLIST_TLDS", "com, IO ,net")
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowlistTLDs) != 3 {
		t.Fatalf("allowlist: got %v", cfg.AllowlistTLDs)
	}
	if !cfg.TLDAllowed("io") || !cfg.TLDAllowed("IO") {
		t.Fatal("allowlisted tld rejected")
	}
	if cfg.TLDAllowed("xyz") {
		t.Fatal("non-allowlisted tld accepted")
	}
}

func TestLoadEnvConfig_TLDAllowlistRejectsNonAlpha(t *testing.T) {
	t.Setenv("ALLOWLIST_TLDS", "com,c0m")
	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("numeric tld accepted")
	}
}

func TestTLDAllowed_EmptyAllowlistPermitsAll(t *testing.T) {
	cfg := &EnvConfig{}
	if !cfg.TLDAllowed("anything") {
		t.Fatal("empty allowlist must permit every tld")
	}
}

func TestLoadEnvConfig_BadSchedule(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "every day at noon")
	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("invalid cron schedule accepted")
	}
}
