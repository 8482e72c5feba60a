package model

// RiskLevel classifies how much damage an action can do.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskRank maps risk levels to comparable integers for threshold checks.
var RiskRank = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel returns the RiskLevel for s, or (RiskNone, false) if s is
// not a known level. Levels are lowercase identifiers.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return RiskLevel(s), true
	}
	return RiskNone, false
}

// AtLeast reports whether l is at or above min in the risk ordering.
func (l RiskLevel) AtLeast(min RiskLevel) bool {
	return RiskRank[l] >= RiskRank[min]
}

// Action is the kind of event recorded in the audit ledger.
type Action string

const (
	ActionToolCall          Action = "tool_call"
	ActionToolResult        Action = "tool_result"
	ActionLLMInput          Action = "llm_input"
	ActionLLMOutput         Action = "llm_output"
	ActionInjectionDetected Action = "injection_detected"
	ActionConsentDenied     Action = "consent_denied"
)
