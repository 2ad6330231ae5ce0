// Package label implements the safety filter for single DNS labels: ASCII-LDH
// validation plus homograph, invisible-codepoint, and mixed-script detection
// for punycode labels.
package label

import (
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// Reason identifies why a label was rejected.
type Reason string

const (
	InvalidLength          Reason = "InvalidLength"
	InvalidHyphenPosition  Reason = "InvalidHyphenPosition"
	NonASCIINotAllowed     Reason = "NonASCIINotAllowed"
	UnicodeMustUsePunycode Reason = "UnicodeMustUsePunycode"
	InvalidPunycode        Reason = "InvalidPunycode"
	HasInvisible           Reason = "HasInvisible"
	MixedScripts           Reason = "MixedScripts"
	AllNumeric             Reason = "AllNumeric"
)

// Result is the outcome of checking one label.
type Result struct {
	Safe    bool     `json:"safe"`
	Reasons []Reason `json:"reasons,omitempty"`
}

// Invisible codepoints used in homograph attacks: ZWSP, ZWNJ, ZWJ, word
// joiner, BOM.
var invisibles = map[rune]bool{
	'\u200B': true, // zero width space
	'\u200C': true, // zero width non-joiner
	'\u200D': true, // zero width joiner
	'\u2060': true, // word joiner
	'\uFEFF': true, // byte order mark
}

// scriptTable restricts mixed-script detection to the scripts that matter for
// homograph spoofing. Codepoints outside these scripts are ignored.
var scriptTable = []struct {
	name   string
	ranges *unicode.RangeTable
}{
	{"Latin", unicode.Latin},
	{"Cyrillic", unicode.Cyrillic},
	{"Greek", unicode.Greek},
	{"Arabic", unicode.Arabic},
	{"Hebrew", unicode.Hebrew},
	{"Han", unicode.Han},
	{"Hiragana", unicode.Hiragana},
	{"Katakana", unicode.Katakana},
}

// Check classifies a single DNS label. The label is the portion of a domain
// before the final dot; the TLD is validated separately by the allowlist.
func Check(raw string, allowUnicode bool) Result {
	label := strings.ToLower(raw)
	var reasons []Reason

	if len(label) < 1 || len(label) > 63 {
		reasons = append(reasons, InvalidLength)
		return Result{Safe: false, Reasons: reasons}
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		reasons = append(reasons, InvalidHyphenPosition)
		return Result{Safe: false, Reasons: reasons}
	}

	// Punycode labels are ASCII-LDH but must not take the fast path: they
	// encode Unicode and need the decode/invisible/script checks below.
	if isASCIILDH(label) && !strings.HasPrefix(label, "xn--") {
		if isAllDigits(label) {
			return Result{Safe: false, Reasons: []Reason{AllNumeric}}
		}
		return Result{Safe: true}
	}

	if !allowUnicode {
		return Result{Safe: false, Reasons: []Reason{NonASCIINotAllowed}}
	}

	if !strings.HasPrefix(label, "xn--") {
		return Result{Safe: false, Reasons: []Reason{UnicodeMustUsePunycode}}
	}

	// Raw punycode decoding: validation beyond the decode itself is ours, so
	// invisible codepoints survive for inspection below.
	decoded, err := idna.Punycode.ToUnicode(label)
	if err != nil || decoded == label {
		return Result{Safe: false, Reasons: []Reason{InvalidPunycode}}
	}

	seen := map[string]bool{}
	for _, r := range decoded {
		if invisibles[r] {
			reasons = appendReason(reasons, HasInvisible)
			continue
		}
		for _, s := range scriptTable {
			if unicode.Is(s.ranges, r) {
				seen[s.name] = true
				break
			}
		}
	}
	if len(seen) > 1 {
		reasons = appendReason(reasons, MixedScripts)
	}

	return Result{Safe: len(reasons) == 0, Reasons: reasons}
}

func appendReason(reasons []Reason, r Reason) []Reason {
	for _, existing := range reasons {
		if existing == r {
			return reasons
		}
	}
	return append(reasons, r)
}

// isASCIILDH reports whether the lowercased label consists only of
// [a-z0-9-].
func isASCIILDH(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
