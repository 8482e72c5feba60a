package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/airlabs/trustplane/internal/model"
)

// Ledger is an append-only, hash-chained audit trail. Records are immutable
// once appended; the ledger owns them and never edits or deletes. Append is
// the sole strictly-ordered operation; Verify, Stats, and Export run under a
// shared view.
type Ledger struct {
	mu        sync.RWMutex
	records   []AuditRecord
	store     Store
	forwarder *Forwarder
	lastTS    time.Time
	now       func() time.Time
}

// Option configures a Ledger at creation time.
type Option func(*Ledger)

// WithStore attaches durable storage. Existing records are reloaded and the
// chain tail re-derived from the last record.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// WithSink attaches a remote compliance sink. Records are forwarded off the
// append path, best-effort; delivery failure never fails a local append.
func WithSink(s Sink, queueSize int) Option {
	return func(l *Ledger) { l.forwarder = NewForwarder(s, queueSize) }
}

func withClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger. When a store is configured, previously persisted
// records are loaded so the chain continues where it left off; an empty
// store starts a fresh chain at the genesis hash.
func New(opts ...Option) (*Ledger, error) {
	l := &Ledger{now: time.Now}
	for _, o := range opts {
		o(l)
	}

	if l.store != nil {
		recs, err := l.store.Load()
		switch {
		case err == nil:
			l.records = recs
			if n := len(recs); n > 0 {
				if ts, perr := time.Parse(TimestampFormat, recs[n-1].Timestamp); perr == nil {
					l.lastTS = ts
				}
			}
		case errors.Is(err, ErrStoreEmpty):
			// fresh chain
		default:
			return nil, fmt.Errorf("ledger: load store: %w", err)
		}
	}

	if l.forwarder != nil {
		l.forwarder.Start()
	}
	return l, nil
}

// Append assigns the next sequence number, chains the new record to the
// current tail, persists it synchronously when a store is configured, and
// hands it to the forwarder. It fails only when durable persistence fails.
func (l *Ledger) Append(f Fields) (AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := Genesis
	if n := len(l.records); n > 0 {
		prevHash = l.records[n-1].RecordHash
	}

	// Timestamps are non-decreasing even if the wall clock steps backwards.
	ts := l.now().UTC()
	if ts.Before(l.lastTS) {
		ts = l.lastTS
	}

	rec := AuditRecord{
		Seq:               uint64(len(l.records)) + 1,
		Timestamp:         ts.Format(TimestampFormat),
		Action:            f.Action,
		Subject:           f.Subject,
		RiskLevel:         f.RiskLevel,
		ConsentRequired:   f.ConsentRequired,
		ConsentGranted:    f.ConsentGranted,
		DataTokenized:     f.DataTokenized,
		InjectionDetected: f.InjectionDetected,
		Metadata:          f.Metadata,
		PrevHash:          prevHash,
	}
	rec.RecordHash = ComputeHash(rec)

	if l.store != nil {
		if err := l.store.Append(rec); err != nil {
			// A failed append leaves no state behind, the clamp included.
			return AuditRecord{}, fmt.Errorf("ledger: persist record %d: %w", rec.Seq, err)
		}
	}

	l.lastTS = ts
	l.records = append(l.records, rec)

	if l.forwarder != nil {
		l.forwarder.Enqueue(rec)
	}
	return rec, nil
}

// VerifyResult is the outcome of a chain verification walk.
type VerifyResult struct {
	Valid           bool   `json:"valid"`
	TotalEntries    int    `json:"total_entries"`
	FirstInvalidSeq uint64 `json:"first_invalid_seq,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Verify walks the chain recomputing every hash and fails fast at the first
// mismatch. An empty ledger is valid. Verify never returns an error.
func (l *Ledger) Verify() VerifyResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyRecords(l.records)
}

func verifyRecords(records []AuditRecord) VerifyResult {
	prevHash := Genesis
	for i, rec := range records {
		seq := uint64(i) + 1
		if rec.Seq != seq {
			return VerifyResult{
				TotalEntries:    len(records),
				FirstInvalidSeq: seq,
				Reason:          fmt.Sprintf("sequence gap: record %d carries seq %d", seq, rec.Seq),
			}
		}
		if rec.PrevHash != prevHash {
			return VerifyResult{
				TotalEntries:    len(records),
				FirstInvalidSeq: seq,
				Reason:          fmt.Sprintf("chain break: prev_hash %s, expected %s", rec.PrevHash, prevHash),
			}
		}
		if got := ComputeHash(rec); got != rec.RecordHash {
			return VerifyResult{
				TotalEntries:    len(records),
				FirstInvalidSeq: seq,
				Reason:          fmt.Sprintf("content altered: record_hash %s, recomputed %s", rec.RecordHash, got),
			}
		}
		prevHash = rec.RecordHash
	}
	return VerifyResult{Valid: true, TotalEntries: len(records)}
}

// Stats summarizes the ledger contents.
type Stats struct {
	TotalEntries   int                     `json:"total_entries"`
	ChainValid     bool                    `json:"chain_valid"`
	CountsByRisk   map[model.RiskLevel]int `json:"counts_by_risk_level"`
	CountsByAction map[model.Action]int    `json:"counts_by_action"`
}

// Stats returns entry counts and the current chain validity.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		TotalEntries:   len(l.records),
		ChainValid:     verifyRecords(l.records).Valid,
		CountsByRisk:   make(map[model.RiskLevel]int),
		CountsByAction: make(map[model.Action]int),
	}
	for _, rec := range l.records {
		s.CountsByRisk[rec.RiskLevel]++
		s.CountsByAction[rec.Action]++
	}
	return s
}

// Export returns a copy of all records in append order, exactly as stored.
// Secrets must already be tokenized upstream; the ledger does not redact.
func (l *Ledger) Export() []AuditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]AuditRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Close stops the forwarder and closes the store. An Append racing Close
// keeps the local chain intact; its forward is dropped, never a panic.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.forwarder != nil {
		l.forwarder.Close()
		l.forwarder = nil
	}
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}
