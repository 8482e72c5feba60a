package policy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/airlabs/trustplane/internal/ledger"
	"github.com/airlabs/trustplane/internal/model"
)

// Mode resolves whether a high-risk action proceeds without human approval.
type Mode string

const (
	// AutoDeny blocks every action that requires consent. Fail-safe default.
	AutoDeny Mode = "auto_deny"
	// AutoAllow logs and allows actions that require consent.
	AutoAllow Mode = "auto_allow"
	// Interactive asks an injected consent provider and blocks on its answer.
	Interactive Mode = "interactive"
)

// ParseMode returns the Mode for s, or (AutoDeny, false) if unknown.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case AutoDeny, AutoAllow, Interactive:
		return Mode(s), true
	}
	return AutoDeny, false
}

// ConsentProvider answers whether a high-risk action may proceed. It is
// invoked synchronously from Intercept and may block until a human decides;
// the gate bounds the wait with its timeout.
type ConsentProvider func(ctx context.Context, toolName string, toolInput map[string]any) bool

// DefaultConsentTimeout bounds an Interactive wait when none is configured.
const DefaultConsentTimeout = 30 * time.Second

// Gate decides, per policy, whether an action may proceed. Stateless besides
// the immutable policy; holds a shared reference to the ledger for denial
// logging.
type Gate struct {
	policy   *Policy
	mode     Mode
	provider ConsentProvider
	timeout  time.Duration
	ledger   *ledger.Ledger
}

// GateOption configures a Gate at creation time.
type GateOption func(*Gate)

// WithProvider injects the Interactive consent callback.
func WithProvider(p ConsentProvider) GateOption {
	return func(g *Gate) { g.provider = p }
}

// WithTimeout bounds the Interactive wait. Expiry resolves to deny.
func WithTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.timeout = d }
}

// NewGate creates a consent gate. led may be nil, in which case denials are
// not logged.
func NewGate(p *Policy, mode Mode, led *ledger.Ledger, opts ...GateOption) (*Gate, error) {
	if p == nil {
		return nil, fmt.Errorf("policy: gate requires a policy")
	}
	if _, ok := ParseMode(string(mode)); !ok {
		return nil, fmt.Errorf("policy: invalid consent mode %q", mode)
	}
	g := &Gate{policy: p, mode: mode, timeout: DefaultConsentTimeout, ledger: led}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// ClassifyRisk returns the policy's risk level for toolName.
func (g *Gate) ClassifyRisk(toolName string) model.RiskLevel {
	return g.policy.Classify(toolName)
}

// RequiresConsent reports whether toolName's risk meets the threshold.
func (g *Gate) RequiresConsent(toolName string) bool {
	return g.policy.RequiresConsent(toolName)
}

// InterceptResult is the gate's decision for one action.
type InterceptResult struct {
	Blocked bool
	Reason  string
}

// Intercept evaluates one action. Actions below the consent threshold always
// pass without blocking. Above it, the configured mode decides: AutoDeny
// blocks, AutoAllow permits, Interactive asks the provider under the
// timeout. An absent provider or an expired wait resolves to deny — the
// gate fails closed. Every block appends a consent_denied record first.
func (g *Gate) Intercept(ctx context.Context, toolName string, toolInput map[string]any) InterceptResult {
	if !g.RequiresConsent(toolName) {
		return InterceptResult{}
	}

	level := g.ClassifyRisk(toolName)

	switch g.mode {
	case AutoAllow:
		return InterceptResult{}

	case Interactive:
		if g.provider == nil {
			return g.deny(toolName, level, "consent mode is interactive but no provider is configured")
		}
		granted, timedOut := g.ask(ctx, toolName, toolInput)
		if timedOut {
			return g.deny(toolName, level, fmt.Sprintf("consent request timed out after %s", g.timeout))
		}
		if !granted {
			return g.deny(toolName, level, "consent refused by provider")
		}
		return InterceptResult{}

	default: // AutoDeny
		return g.deny(toolName, level, fmt.Sprintf("consent required for %s-risk tool and mode is auto_deny", level))
	}
}

// ask runs the provider and waits for its answer or the timeout, whichever
// comes first. The provider goroutine observes cancellation via ctx.
func (g *Gate) ask(ctx context.Context, toolName string, toolInput map[string]any) (granted, timedOut bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	answer := make(chan bool, 1)
	go func() {
		answer <- g.provider(ctx, toolName, toolInput)
	}()

	select {
	case granted = <-answer:
		return granted, false
	case <-ctx.Done():
		return false, true
	}
}

func (g *Gate) deny(toolName string, level model.RiskLevel, reason string) InterceptResult {
	if g.ledger != nil {
		if _, err := g.ledger.Append(ledger.Fields{
			Action:          model.ActionConsentDenied,
			Subject:         toolName,
			RiskLevel:       level,
			ConsentRequired: true,
			Metadata:        map[string]string{"reason": reason},
		}); err != nil {
			fmt.Fprintf(os.Stderr, "consent: record denial for %s: %v\n", toolName, err)
		}
	}
	return InterceptResult{Blocked: true, Reason: reason}
}
