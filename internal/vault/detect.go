package vault

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// PatternKind identifies which detector claimed a span.
type PatternKind string

const (
	KindAPIKey      PatternKind = "api_key"
	KindEmail       PatternKind = "email"
	KindHighEntropy PatternKind = "high_entropy"
)

// span is one claimed region of sensitive text.
type span struct {
	start int
	end   int
	kind  PatternKind
	value string
}

// Built-in detector patterns. Order is priority order: once a span is
// claimed, lower-priority detectors cannot re-claim any part of it.
var (
	// Provider-prefixed API keys: sk-/pk-/rk-, GitHub, Slack, AWS access keys.
	apiKeyRe = regexp.MustCompile(`\b(?:(?:sk|pk|rk)[-_][A-Za-z0-9_-]{16,}|gh[pousr]_[A-Za-z0-9]{20,}|xox[baprs]-[A-Za-z0-9-]{10,}|AKIA[0-9A-Z]{16})\b`)

	// Email addresses.
	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	// Candidate strings for the entropy heuristic; filtered by shannon().
	entropyCandidateRe = regexp.MustCompile(`[A-Za-z0-9+/=_\-]{20,}`)
)

// entropyThreshold is the minimum Shannon entropy (bits per byte) for a
// candidate to count as a secret. Hex-encoded secrets sit near 3.7, base64
// near 4.5; English words and repeated filler stay well below.
const entropyThreshold = 3.5

type customDetector struct {
	kind PatternKind
	re   *regexp.Regexp
}

// detect runs the detector set left-to-right over non-overlapping spans and
// returns the claimed spans sorted by position.
func (v *Vault) detect(text string) []span {
	var claimed []span

	claim := func(kind PatternKind, start, end int) {
		for _, c := range claimed {
			if start < c.end && c.start < end {
				return
			}
		}
		claimed = append(claimed, span{start: start, end: end, kind: kind, value: text[start:end]})
	}

	// Configured custom patterns run first so operators can override the
	// built-in classification for domain-specific shapes.
	for _, d := range v.custom {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			claim(d.kind, loc[0], loc[1])
		}
	}

	for _, loc := range apiKeyRe.FindAllStringIndex(text, -1) {
		claim(KindAPIKey, loc[0], loc[1])
	}

	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		claim(KindEmail, loc[0], loc[1])
	}

	for _, loc := range entropyCandidateRe.FindAllStringIndex(text, -1) {
		val := text[loc[0]:loc[1]]
		// Never re-claim vault placeholders.
		if strings.HasPrefix(val, "tok_") {
			continue
		}
		if !looksSecret(val) {
			continue
		}
		claim(KindHighEntropy, loc[0], loc[1])
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })
	return claimed
}

// looksSecret filters entropy candidates: a secret mixes letters and digits
// and has high per-byte entropy.
func looksSecret(s string) bool {
	var hasLetter, hasDigit bool
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter || !hasDigit {
		return false
	}
	return shannon(s) >= entropyThreshold
}

// shannon returns the Shannon entropy of s in bits per byte.
func shannon(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	n := float64(len(s))
	var h float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
