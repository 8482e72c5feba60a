package trustplane

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/airlabs/trustplane/internal/config"
	"github.com/airlabs/trustplane/internal/gateway"
	"github.com/airlabs/trustplane/internal/ledger"
	"github.com/airlabs/trustplane/internal/model"
	"github.com/airlabs/trustplane/internal/policy"
	"github.com/airlabs/trustplane/internal/scanner"
	"github.com/airlabs/trustplane/internal/vault"
)

// Config is the public alias for the trustplane configuration surface.
type Config = config.Config

// Core owns the four trust primitives for one agent pipeline. Construct
// with New, hand to the caller, Close when the pipeline shuts down. Safe
// for concurrent use from parallel tool and model call sites.
type Core struct {
	traceID string
	opts    coreOptions

	// mu guards cfg, gate, and scanner, which Reload swaps at runtime.
	// The ledger and vault are stateful and live for the Core's lifetime.
	mu      sync.RWMutex
	cfg     *Config
	gate    *policy.Gate
	scanner *scanner.Scanner

	ledger *ledger.Ledger
	vault  *vault.Vault
}

// Option configures a Core at creation time.
type Option func(*coreOptions)

type coreOptions struct {
	provider policy.ConsentProvider
	store    ledger.Store
	sink     ledger.Sink
}

// WithConsentProvider injects the Interactive consent callback.
func WithConsentProvider(p policy.ConsentProvider) Option {
	return func(o *coreOptions) { o.provider = p }
}

// WithStore overrides the ledger store built from configuration.
func WithStore(s ledger.Store) Option {
	return func(o *coreOptions) { o.store = s }
}

// WithSink overrides the remote compliance sink built from configuration.
func WithSink(s ledger.Sink) Option {
	return func(o *coreOptions) { o.sink = s }
}

// New builds a Core from cfg. A nil cfg uses defaults. Configuration errors
// are fatal at construction; nothing is half-initialized.
func New(cfg *Config, opts ...Option) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o coreOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Core{cfg: cfg, opts: o, traceID: newTraceID()}

	if cfg.Ledger.Enabled {
		var ledgerOpts []ledger.Option
		store := o.store
		if store == nil && cfg.Ledger.LocalPath != "" {
			var err error
			store, err = openStore(cfg.Ledger.LocalPath)
			if err != nil {
				return nil, err
			}
		}
		if store != nil {
			ledgerOpts = append(ledgerOpts, ledger.WithStore(store))
		}
		sink := o.sink
		if sink == nil && cfg.Ledger.RemoteEndpoint != "" {
			sink = gateway.NewHTTPSink(cfg.Ledger.RemoteEndpoint, cfg.Ledger.RemoteKey)
		}
		if sink != nil {
			ledgerOpts = append(ledgerOpts, ledger.WithSink(sink, cfg.Ledger.QueueSize))
		}
		led, err := ledger.New(ledgerOpts...)
		if err != nil {
			return nil, err
		}
		c.ledger = led
	}

	if cfg.Vault.Enabled {
		var vaultOpts []vault.Option
		for _, p := range cfg.Vault.CustomPatterns {
			vaultOpts = append(vaultOpts, vault.WithCustomPattern(p.Name, p.Pattern))
		}
		if cfg.Vault.KeyStoreEndpoint != "" {
			vaultOpts = append(vaultOpts, vault.WithMirror(
				gateway.NewKeyStoreMirror(cfg.Vault.KeyStoreEndpoint, cfg.Vault.KeyStoreKey)))
		}
		v, err := vault.New(vaultOpts...)
		if err != nil {
			return nil, err
		}
		c.vault = v
	}

	gate, sc, err := c.buildDecisionLayer(cfg)
	if err != nil {
		return nil, err
	}
	c.gate = gate
	c.scanner = sc

	return c, nil
}

// buildDecisionLayer constructs the stateless decision components (gate and
// scanner) for cfg. Shared by New and Reload.
func (c *Core) buildDecisionLayer(cfg *Config) (*policy.Gate, *scanner.Scanner, error) {
	var gate *policy.Gate
	if cfg.ConsentGate.Enabled {
		pol, err := buildPolicy(cfg.ConsentGate)
		if err != nil {
			return nil, nil, err
		}
		mode, ok := policy.ParseMode(cfg.ConsentGate.Mode)
		if !ok {
			return nil, nil, fmt.Errorf("trustplane: invalid consent mode %q", cfg.ConsentGate.Mode)
		}
		var gateOpts []policy.GateOption
		if c.opts.provider != nil {
			gateOpts = append(gateOpts, policy.WithProvider(c.opts.provider))
		}
		if d := cfg.ConsentGate.ConsentTimeout(); d > 0 {
			gateOpts = append(gateOpts, policy.WithTimeout(d))
		}
		gate, err = policy.NewGate(pol, mode, c.ledger, gateOpts...)
		if err != nil {
			return nil, nil, err
		}
	}

	var sc *scanner.Scanner
	if cfg.Injection.Enabled {
		sens, ok := scanner.ParseSensitivity(cfg.Injection.Sensitivity)
		if !ok {
			return nil, nil, fmt.Errorf("trustplane: invalid scanner sensitivity %q", cfg.Injection.Sensitivity)
		}
		var err error
		sc, err = scanner.New(sens)
		if err != nil {
			return nil, nil, err
		}
	}

	return gate, sc, nil
}

// Reload swaps the consent gate and scanner for a freshly loaded config.
// Policies are immutable; reload replaces them wholesale. The ledger and
// vault keep their state — a reload must not orphan token mappings or
// restart the chain. Invalid config leaves the running components in place.
func (c *Core) Reload(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("trustplane: reload requires a config")
	}
	gate, sc, err := c.buildDecisionLayer(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.gate = gate
	c.scanner = sc
	return nil
}

func openStore(path string) (ledger.Store, error) {
	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite") {
		return ledger.OpenSQLite(path)
	}
	return ledger.OpenJSONL(path)
}

func buildPolicy(cfg config.ConsentGateConfig) (*policy.Policy, error) {
	defLevel, ok := model.ParseRiskLevel(cfg.DefaultLevel)
	if !ok {
		return nil, fmt.Errorf("trustplane: invalid default risk level %q", cfg.DefaultLevel)
	}
	threshold, ok := model.ParseRiskLevel(cfg.Threshold)
	if !ok {
		return nil, fmt.Errorf("trustplane: invalid consent threshold %q", cfg.Threshold)
	}

	rules := policy.DefaultRules()
	if len(cfg.Rules) > 0 {
		rules = make([]policy.Rule, 0, len(cfg.Rules))
		for _, r := range cfg.Rules {
			level, ok := model.ParseRiskLevel(r.Level)
			if !ok {
				return nil, fmt.Errorf("trustplane: rule %q: invalid risk level %q", r.Pattern, r.Level)
			}
			rules = append(rules, policy.Rule{Pattern: r.Pattern, Level: level})
		}
	}
	return policy.New(rules, defLevel, threshold)
}

// Ledger returns the audit ledger, or nil when disabled.
func (c *Core) Ledger() *ledger.Ledger { return c.ledger }

// Vault returns the tokenization vault, or nil when disabled.
func (c *Core) Vault() *vault.Vault { return c.vault }

// Gate returns the current consent gate, or nil when disabled.
func (c *Core) Gate() *policy.Gate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gate
}

// Scanner returns the current injection scanner, or nil when disabled.
func (c *Core) Scanner() *scanner.Scanner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanner
}

// snapshot returns a consistent view of the swappable components for one
// hook invocation.
func (c *Core) snapshot() (*Config, *policy.Gate, *scanner.Scanner) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, c.gate, c.scanner
}

// TraceID identifies this Core's pipeline in record metadata.
func (c *Core) TraceID() string { return c.traceID }

// AuditStats returns ledger statistics.
func (c *Core) AuditStats() ledger.Stats {
	if c.ledger == nil {
		return ledger.Stats{ChainValid: true}
	}
	return c.ledger.Stats()
}

// VerifyChain verifies the audit chain.
func (c *Core) VerifyChain() ledger.VerifyResult {
	if c.ledger == nil {
		return ledger.VerifyResult{Valid: true}
	}
	return c.ledger.Verify()
}

// ExportAudit returns all audit records in order.
func (c *Core) ExportAudit() []ledger.AuditRecord {
	if c.ledger == nil {
		return nil
	}
	return c.ledger.Export()
}

// VaultStats returns token table statistics.
func (c *Core) VaultStats() vault.Stats {
	if c.vault == nil {
		return vault.Stats{ByPatternKind: map[vault.PatternKind]int{}}
	}
	return c.vault.Stats()
}

// Detokenize reverses vault placeholders in text. Reserved for callers with
// vault access.
func (c *Core) Detokenize(text string) string {
	if c.vault == nil {
		return text
	}
	return c.vault.Detokenize(text)
}

// Close releases the ledger's store and forwarder.
func (c *Core) Close() error {
	if c.ledger != nil {
		return c.ledger.Close()
	}
	return nil
}

func newTraceID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "t-000000000000"
	}
	return "t-" + hex.EncodeToString(b)
}
