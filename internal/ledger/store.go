package ledger

import (
	"errors"
	"fmt"
)

// ErrStoreEmpty is returned by Store.Load when the backing storage exists
// but holds no records. Callers use it to distinguish a fresh ledger from a
// damaged one.
var ErrStoreEmpty = errors.New("ledger: store is empty")

// CorruptError reports storage content that cannot be decoded into records.
// Chain verification failures are NOT corruption — they are reported by
// Verify, never by Load.
type CorruptError struct {
	Seq int // 1-based position of the first undecodable record
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger: corrupt store at record %d: %v", e.Seq, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store is durable storage for audit records. Append must persist the record
// before returning; a successful append survives a crash. Load returns all
// records in append order, ErrStoreEmpty when there are none, or a
// *CorruptError when content cannot be decoded.
type Store interface {
	Append(rec AuditRecord) error
	Load() ([]AuditRecord, error)
	Close() error
}
