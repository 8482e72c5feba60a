package scanner

import "regexp"

// Category groups rules by the manipulation technique they detect.
type Category string

const (
	CategoryInstructionOverride Category = "instruction_override"
	CategoryRoleHijack          Category = "role_hijack"
	CategoryPromptExfiltration  Category = "prompt_exfiltration"
	CategoryObfuscation         Category = "obfuscation"
)

// Rule is one weighted detection pattern. A rule contributes its weight
// exactly once per scan regardless of how often it matches.
type Rule struct {
	ID       string
	Category Category
	Weight   float64
	re       *regexp.Regexp
}

func rule(id string, cat Category, weight float64, pattern string) Rule {
	return Rule{ID: id, Category: cat, Weight: weight, re: regexp.MustCompile(`(?i)` + pattern)}
}

// DefaultRules is the built-in manipulation rule library. Weights are tuned
// so a single strong override phrase crosses the medium threshold and any
// two strong phrases cross it comfortably.
func DefaultRules() []Rule {
	return []Rule{
		// Instruction override
		rule("override.ignore_previous", CategoryInstructionOverride, 0.6,
			`ignore\s+(?:all\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|directions|prompts|rules)`),
		rule("override.disregard", CategoryInstructionOverride, 0.6,
			`disregard\s+(?:all\s+)?(?:previous|prior|your)\s+(?:instructions|directions|rules|guidelines)`),
		rule("override.forget", CategoryInstructionOverride, 0.5,
			`forget\s+(?:everything|all|your)\s+(?:you|previous|prior|instructions)`),
		rule("override.new_instructions", CategoryInstructionOverride, 0.4,
			`(?:new|real|actual)\s+instructions\s*[:=]`),
		rule("override.bypass_safety", CategoryInstructionOverride, 0.6,
			`bypass\s+(?:your\s+)?(?:safety|security|content)\s+(?:restrictions|filters|guidelines|measures)`),

		// Role hijack
		rule("hijack.you_are_now", CategoryRoleHijack, 0.5,
			`you\s+are\s+now\s+(?:a|an|the|no\s+longer)`),
		rule("hijack.act_as", CategoryRoleHijack, 0.4,
			`act\s+as\s+(?:if\s+you\s+(?:are|were)|a\s+different|an?\s+unrestricted)`),
		rule("hijack.pretend", CategoryRoleHijack, 0.4,
			`pretend\s+(?:to\s+be|you\s+(?:are|have|can))`),
		rule("hijack.dan", CategoryRoleHijack, 0.6,
			`\b(?:DAN|do\s+anything\s+now)\b`),
		rule("hijack.developer_mode", CategoryRoleHijack, 0.5,
			`(?:developer|god|jailbreak)\s+mode`),

		// System prompt exfiltration
		rule("exfil.reveal_prompt", CategoryPromptExfiltration, 0.6,
			`(?:reveal|show|print|repeat|output|display)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|initial\s+prompt|instructions|hidden\s+rules)`),
		rule("exfil.what_prompt", CategoryPromptExfiltration, 0.4,
			`what\s+(?:is|are)\s+your\s+(?:system\s+prompt|initial\s+instructions|original\s+rules)`),
		rule("exfil.verbatim", CategoryPromptExfiltration, 0.5,
			`(?:repeat|recite)\s+(?:everything|all\s+text)\s+(?:above|before)`),

		// Obfuscation indicators
		rule("obfuscation.base64", CategoryObfuscation, 0.3,
			`(?:decode|execute|run)\s+(?:this\s+)?base64`),
		rule("obfuscation.zero_width", CategoryObfuscation, 0.3,
			`[\x{200B}\x{200C}\x{200D}\x{2060}\x{FEFF}]`),
		rule("obfuscation.leet", CategoryObfuscation, 0.2,
			`1gn0re|pr0mpt|5y5tem|in5truct`),
	}
}
