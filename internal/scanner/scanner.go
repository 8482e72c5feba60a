// Package scanner implements deterministic detection of prompt-manipulation
// attempts. Scoring is cumulative over a weighted rule library — no model
// calls, no heuristics beyond pattern matching, same input same verdict.
package scanner

import (
	"fmt"
	"unicode/utf8"
)

// Sensitivity selects the blocking threshold. Lower threshold = more
// aggressive blocking.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// BlockThreshold returns the score at which a scan blocks.
func BlockThreshold(s Sensitivity) float64 {
	switch s {
	case SensitivityLow:
		return 0.8
	case SensitivityHigh:
		return 0.3
	default:
		return 0.5
	}
}

// ParseSensitivity returns the Sensitivity for s, or (medium, false) if
// unknown.
func ParseSensitivity(s string) (Sensitivity, bool) {
	switch Sensitivity(s) {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return Sensitivity(s), true
	}
	return SensitivityMedium, false
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	Detected        bool     `json:"detected"`
	Score           float64  `json:"score"`
	MatchedPatterns []string `json:"matched_patterns"`
	Blocked         bool     `json:"blocked"`
}

// Scanner scores text against the rule library. Pure and safe for
// unrestricted concurrent use.
type Scanner struct {
	rules     []Rule
	threshold float64
}

// New creates a Scanner with the built-in rule library.
func New(sensitivity Sensitivity) (*Scanner, error) {
	if _, ok := ParseSensitivity(string(sensitivity)); !ok {
		return nil, fmt.Errorf("scanner: invalid sensitivity %q", sensitivity)
	}
	return &Scanner{rules: DefaultRules(), threshold: BlockThreshold(sensitivity)}, nil
}

// Scan evaluates text against every rule. Each distinct matching rule
// contributes its weight exactly once; the score clamps at 1.0. Scan never
// fails — empty or unscannable input yields the zero result.
func (s *Scanner) Scan(text string) ScanResult {
	if text == "" || !utf8.ValidString(text) {
		return ScanResult{MatchedPatterns: []string{}}
	}

	score := 0.0
	matched := []string{}
	for _, r := range s.rules {
		if r.re.MatchString(text) {
			score += r.Weight
			matched = append(matched, r.ID)
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	return ScanResult{
		Detected:        score > 0,
		Score:           score,
		MatchedPatterns: matched,
		Blocked:         score >= s.threshold,
	}
}
