// Package vault implements reversible tokenization of sensitive data.
// Sensitive substrings are replaced with opaque placeholders before text
// reaches a model or external tool; the mapping stays inside the vault and
// is only reversed through Detokenize.
package vault

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Token is one reversible mapping. Identical original values always map to
// the same token within a vault instance; tokens are retained until Reset.
type Token struct {
	ID            string      `json:"token_id"`
	OriginalValue string      `json:"-"`
	Kind          PatternKind `json:"pattern_kind"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Placeholder returns the stable placeholder embedded in tokenized text.
func (t Token) Placeholder() string {
	return "<<" + t.ID + ">>"
}

var placeholderRe = regexp.MustCompile(`<<(tok_[0-9a-f]{16})>>`)

// Mirror is an optional remote key store that receives new token mappings.
// Delivery is best-effort and never blocks tokenization.
type Mirror interface {
	Put(tokenID, originalValue, patternKind, createdAt string) error
}

// Vault detects sensitive substrings and replaces them with placeholders,
// retaining the reverse mapping. Safe for concurrent use.
type Vault struct {
	mu      sync.Mutex
	byValue map[string]*Token
	byID    map[string]*Token
	custom  []customDetector
	mirror  Mirror
}

// Option configures a Vault at creation time.
type Option func(*Vault) error

// WithCustomPattern adds a named detector evaluated before the built-ins.
func WithCustomPattern(name, pattern string) Option {
	return func(v *Vault) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("vault: custom pattern %q: %w", name, err)
		}
		v.custom = append(v.custom, customDetector{kind: PatternKind(name), re: re})
		return nil
	}
}

// WithMirror attaches a remote key-store mirror.
func WithMirror(m Mirror) Option {
	return func(v *Vault) error {
		v.mirror = m
		return nil
	}
}

// New creates an empty vault.
func New(opts ...Option) (*Vault, error) {
	v := &Vault{
		byValue: make(map[string]*Token),
		byID:    make(map[string]*Token),
	}
	for _, o := range opts {
		if err := o(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// TokenizeResult is the outcome of a Tokenize call. Result is a new value;
// the input is never mutated.
type TokenizeResult struct {
	Tokenized bool
	Result    string
	Tokens    []Token
}

// Tokenize replaces every detected sensitive span with its placeholder.
// Unmatched or unscannable input passes through unchanged with
// Tokenized=false — tokenization failure must not disrupt the caller.
func (v *Vault) Tokenize(text string) TokenizeResult {
	if text == "" || !utf8.ValidString(text) {
		return TokenizeResult{Result: text}
	}

	spans := v.detect(text)
	if len(spans) == 0 {
		return TokenizeResult{Result: text}
	}

	var b strings.Builder
	b.Grow(len(text))
	seen := make(map[string]bool)
	var tokens []Token
	pos := 0

	v.mu.Lock()
	for _, sp := range spans {
		tok := v.lookupOrCreateLocked(sp.value, sp.kind)
		b.WriteString(text[pos:sp.start])
		b.WriteString(tok.Placeholder())
		pos = sp.end
		if !seen[tok.ID] {
			seen[tok.ID] = true
			tokens = append(tokens, *tok)
		}
	}
	v.mu.Unlock()
	b.WriteString(text[pos:])

	return TokenizeResult{Tokenized: true, Result: b.String(), Tokens: tokens}
}

// lookupOrCreateLocked returns the existing token for value or mints a new
// one. Callers hold v.mu, which makes lookup-or-create atomic: the same
// value resolves to exactly one token even under concurrent Tokenize calls.
func (v *Vault) lookupOrCreateLocked(value string, kind PatternKind) *Token {
	if tok, ok := v.byValue[value]; ok {
		return tok
	}
	tok := &Token{
		ID:            newTokenID(),
		OriginalValue: value,
		Kind:          kind,
		CreatedAt:     time.Now().UTC(),
	}
	v.byValue[value] = tok
	v.byID[tok.ID] = tok

	if v.mirror != nil {
		go func(t Token) {
			if err := v.mirror.Put(t.ID, t.OriginalValue, string(t.Kind), t.CreatedAt.Format(time.RFC3339)); err != nil {
				fmt.Fprintf(os.Stderr, "vault: mirror token %s: %v\n", t.ID, err)
			}
		}(*tok)
	}
	return tok
}

// Detokenize replaces placeholders with their original values. This is the
// sole point where secrets are revealed; it is reserved for callers with
// vault access. Unknown placeholders are left intact.
func (v *Vault) Detokenize(text string) string {
	if text == "" || !strings.Contains(text, "<<tok_") {
		return text
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return placeholderRe.ReplaceAllStringFunc(text, func(ph string) string {
		id := ph[2 : len(ph)-2]
		if tok, ok := v.byID[id]; ok {
			return tok.OriginalValue
		}
		return ph
	})
}

// Stats summarizes the token table.
type Stats struct {
	TotalTokens   int                 `json:"total_tokens"`
	ByPatternKind map[PatternKind]int `json:"by_pattern_kind"`
}

// Stats returns token counts by detector kind.
func (v *Vault) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Stats{
		TotalTokens:   len(v.byValue),
		ByPatternKind: make(map[PatternKind]int),
	}
	for _, tok := range v.byValue {
		s.ByPatternKind[tok.Kind]++
	}
	return s
}

// Reset drops all token mappings. Previously tokenized text can no longer
// be detokenized.
func (v *Vault) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byValue = make(map[string]*Token)
	v.byID = make(map[string]*Token)
}

func newTokenID() string {
	u := uuid.New()
	return "tok_" + hex.EncodeToString(u[:])[:16]
}
