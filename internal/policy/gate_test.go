package policy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/airlabs/trustplane/internal/ledger"
	"github.com/airlabs/trustplane/internal/model"
)

func newTestGate(t *testing.T, mode Mode, led *ledger.Ledger, opts ...GateOption) *Gate {
	t.Helper()
	g, err := NewGate(Default(), mode, led, opts...)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLowRiskPassesWithoutConsent(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, AutoDeny, led)

	res := g.Intercept(context.Background(), "read_document", nil)
	if res.Blocked {
		t.Fatalf("low-risk tool must pass: %s", res.Reason)
	}
	if n := led.Stats().TotalEntries; n != 0 {
		t.Fatalf("pass-through must not log, got %d records", n)
	}
}

func TestAutoDenyBlocksAndLogsOnce(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, AutoDeny, led)

	res := g.Intercept(context.Background(), "delete_user", map[string]any{"id": "u-1"})
	if !res.Blocked {
		t.Fatal("auto_deny must block a critical tool")
	}
	if !strings.Contains(res.Reason, "auto_deny") {
		t.Fatalf("reason should name the mode: %s", res.Reason)
	}

	recs := led.Export()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one denial record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Action != model.ActionConsentDenied {
		t.Fatalf("expected consent_denied, got %s", rec.Action)
	}
	if rec.Subject != "delete_user" || rec.RiskLevel != model.RiskCritical {
		t.Fatalf("denial record misattributed: %+v", rec)
	}
	if !rec.ConsentRequired || rec.ConsentGranted {
		t.Fatalf("denial record flags wrong: %+v", rec)
	}
}

func TestAutoAllowPermits(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, AutoAllow, led)

	res := g.Intercept(context.Background(), "delete_user", nil)
	if res.Blocked {
		t.Fatalf("auto_allow must permit: %s", res.Reason)
	}
	if n := led.Stats().TotalEntries; n != 0 {
		t.Fatalf("auto_allow must not log a denial, got %d records", n)
	}
}

func TestInteractiveGranted(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, Interactive, led, WithProvider(
		func(ctx context.Context, tool string, input map[string]any) bool { return true }))

	res := g.Intercept(context.Background(), "delete_user", nil)
	if res.Blocked {
		t.Fatalf("granted consent must pass: %s", res.Reason)
	}
}

func TestInteractiveRefused(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, Interactive, led, WithProvider(
		func(ctx context.Context, tool string, input map[string]any) bool { return false }))

	res := g.Intercept(context.Background(), "delete_user", nil)
	if !res.Blocked {
		t.Fatal("refused consent must block")
	}
	if len(led.Export()) != 1 {
		t.Fatal("refusal must append a denial record")
	}
}

func TestInteractiveTimeoutDenies(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, Interactive, led,
		WithTimeout(20*time.Millisecond),
		WithProvider(func(ctx context.Context, tool string, input map[string]any) bool {
			<-ctx.Done() // never answers
			return true
		}))

	res := g.Intercept(context.Background(), "delete_user", nil)
	if !res.Blocked {
		t.Fatal("unanswered consent must deny on timeout")
	}
	if !strings.Contains(res.Reason, "timed out") {
		t.Fatalf("reason should name the timeout: %s", res.Reason)
	}
}

func TestInteractiveWithoutProviderDenies(t *testing.T) {
	led := newTestLedger(t)
	g := newTestGate(t, Interactive, led)

	res := g.Intercept(context.Background(), "delete_user", nil)
	if !res.Blocked {
		t.Fatal("interactive mode with no provider must fail closed")
	}
}

func TestNilLedgerDenialStillBlocks(t *testing.T) {
	g := newTestGate(t, AutoDeny, nil)

	res := g.Intercept(context.Background(), "delete_user", nil)
	if !res.Blocked {
		t.Fatal("denial must not depend on the ledger")
	}
}

func TestNewGateRejectsBadInput(t *testing.T) {
	if _, err := NewGate(nil, AutoDeny, nil); err == nil {
		t.Fatal("expected error for nil policy")
	}
	if _, err := NewGate(Default(), Mode("maybe"), nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
