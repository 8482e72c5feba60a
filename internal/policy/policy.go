// Package policy implements risk classification for tool names and the
// consent gate that decides whether a classified action may proceed.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/airlabs/trustplane/internal/model"
)

// Rule maps a tool-name pattern to a risk level. Patterns: exact match,
// "*x*" contains, "x*" prefix, "*x" suffix. Matching is case-insensitive.
type Rule struct {
	Pattern string
	Level   model.RiskLevel
}

// Policy is an immutable risk policy: ordered rules, a default level, and
// the consent threshold. Construct with New; the zero value is not valid.
type Policy struct {
	rules     []Rule
	defLevel  model.RiskLevel
	threshold model.RiskLevel
}

// New validates and builds a Policy. Rules are ordered most-specific-first:
// exact patterns before wildcards, longer literals before shorter, so
// "delete_database" beats "delete_*" beats "*".
func New(rules []Rule, defaultLevel, threshold model.RiskLevel) (*Policy, error) {
	if _, ok := model.ParseRiskLevel(string(defaultLevel)); !ok {
		return nil, fmt.Errorf("policy: invalid default level %q", defaultLevel)
	}
	if _, ok := model.ParseRiskLevel(string(threshold)); !ok {
		return nil, fmt.Errorf("policy: invalid consent threshold %q", threshold)
	}
	for _, r := range rules {
		if strings.Trim(r.Pattern, "*") == "" {
			return nil, fmt.Errorf("policy: rule pattern %q has no literal text", r.Pattern)
		}
		if _, ok := model.ParseRiskLevel(string(r.Level)); !ok {
			return nil, fmt.Errorf("policy: rule %q: invalid level %q", r.Pattern, r.Level)
		}
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := specificity(ordered[i].Pattern), specificity(ordered[j].Pattern)
		return si > sj
	})

	return &Policy{rules: ordered, defLevel: defaultLevel, threshold: threshold}, nil
}

// specificity ranks patterns for most-specific-first matching. Exact
// patterns outrank wildcards; within each class, longer literal text wins.
func specificity(pattern string) int {
	literal := len(strings.Trim(pattern, "*"))
	if !strings.Contains(pattern, "*") {
		return 1_000_000 + literal
	}
	return literal
}

// Classify matches toolName against the rules most-specific-first, falling
// back to the policy default. Pure function of policy and name.
func (p *Policy) Classify(toolName string) model.RiskLevel {
	name := strings.ToLower(toolName)
	for _, r := range p.rules {
		if matchPattern(strings.ToLower(r.Pattern), name) {
			return r.Level
		}
	}
	return p.defLevel
}

// RequiresConsent reports whether toolName's risk meets the threshold.
func (p *Policy) RequiresConsent(toolName string) bool {
	return p.Classify(toolName).AtLeast(p.threshold)
}

// Threshold returns the consent threshold level.
func (p *Policy) Threshold() model.RiskLevel {
	return p.threshold
}

// Default returns the fallback risk level.
func (p *Policy) Default() model.RiskLevel {
	return p.defLevel
}

func matchPattern(pattern, name string) bool {
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(name, strings.Trim(pattern, "*"))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
	default:
		return name == pattern
	}
}

// DefaultRules classifies common destructive, financial, and credential
// tools. Operators extend or replace these via configuration.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "delete_*", Level: model.RiskCritical},
		{Pattern: "drop_*", Level: model.RiskCritical},
		{Pattern: "*payment*", Level: model.RiskCritical},
		{Pattern: "*credential*", Level: model.RiskCritical},
		{Pattern: "*secret*", Level: model.RiskCritical},
		{Pattern: "exec*", Level: model.RiskHigh},
		{Pattern: "*shell*", Level: model.RiskHigh},
		{Pattern: "*deploy*", Level: model.RiskHigh},
		{Pattern: "send_email", Level: model.RiskHigh},
		{Pattern: "write_*", Level: model.RiskMedium},
		{Pattern: "update_*", Level: model.RiskMedium},
		{Pattern: "*file*", Level: model.RiskMedium},
		{Pattern: "read_*", Level: model.RiskLow},
		{Pattern: "search*", Level: model.RiskLow},
	}
}

// Default returns the built-in policy: DefaultRules, low default level,
// consent required at high and above.
func Default() *Policy {
	p, err := New(DefaultRules(), model.RiskLow, model.RiskHigh)
	if err != nil {
		panic(fmt.Sprintf("policy: built-in rules invalid: %v", err))
	}
	return p
}
