package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Digest hashes the purchase parameters that define the request's intent.
// The canonical form is a JSON object with lexicographically sorted keys and
// the quoted total fixed to two decimals, so equal intents always produce
// equal digests regardless of client-side encoding quirks.
func Digest(domain string, years int, privacy bool, quotedTotalUSD float64) string {
	canonical := fmt.Sprintf(
		`{"domain":%q,"quoted_total_usd":%s,"whois_privacy":%t,"years":%d}`,
		domain, formatUSD(quotedTotalUSD), privacy, years)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
