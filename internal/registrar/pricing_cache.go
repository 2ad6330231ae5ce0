package registrar

import (
	"time"

	"github.com/maypok86/otter"
)

// pricingTTL bounds how long per-TLD pricing metadata is served from cache.
const pricingTTL = 5 * time.Minute

// TLDPricing is the cached pricing metadata for one TLD.
type TLDPricing struct {
	PriceUSD        float64
	PrivacyPriceUSD float64
	Premium         bool
}

// PricingCache is a bounded TTL cache of per-TLD pricing shared by a driver's
// quote path. Safe for concurrent use.
type PricingCache struct {
	cache otter.Cache[string, TLDPricing]
}

// NewPricingCache creates a pricing cache with the standard 300 s TTL.
func NewPricingCache() *PricingCache {
	return newPricingCacheWithTTL(pricingTTL)
}

func newPricingCacheWithTTL(ttl time.Duration) *PricingCache {
	cache, err := otter.MustBuilder[string, TLDPricing](2048).
		Cost(func(_ string, _ TLDPricing) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic("registrar: failed to create pricing cache: " + err.Error())
	}
	return &PricingCache{cache: cache}
}

// Get returns the cached pricing for tld, if present and fresh.
func (c *PricingCache) Get(tld string) (TLDPricing, bool) {
	return c.cache.Get(tld)
}

// Set stores pricing for tld.
func (c *PricingCache) Set(tld string, p TLDPricing) {
	c.cache.Set(tld, p)
}
