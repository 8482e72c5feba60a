package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/airlabs/trustplane/internal/model"
)

// Genesis is the prev_hash of the first record in a new ledger.
const Genesis = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the wire format for record timestamps (UTC, millisecond).
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// AuditRecord is one entry in the hash-chained ledger. Field order is fixed
// and metadata is a map[string]string (encoding/json sorts map keys), so
// json.Marshal output is deterministic and hashing is reproducible across
// independent implementations.
type AuditRecord struct {
	Seq               uint64            `json:"seq"`
	Timestamp         string            `json:"ts"`
	Action            model.Action      `json:"action"`
	Subject           string            `json:"subject,omitempty"`
	RiskLevel         model.RiskLevel   `json:"risk_level"`
	ConsentRequired   bool              `json:"consent_required"`
	ConsentGranted    bool              `json:"consent_granted"`
	DataTokenized     bool              `json:"data_tokenized"`
	InjectionDetected bool              `json:"injection_detected"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	PrevHash          string            `json:"prev_hash"`
	RecordHash        string            `json:"record_hash"`
}

// Fields is the caller-supplied portion of a record. Seq, Timestamp,
// PrevHash, and RecordHash are assigned by the ledger on append.
type Fields struct {
	Action            model.Action
	Subject           string
	RiskLevel         model.RiskLevel
	ConsentRequired   bool
	ConsentGranted    bool
	DataTokenized     bool
	InjectionDetected bool
	Metadata          map[string]string
}

// canonicalRecord mirrors AuditRecord without record_hash. Hashing marshals
// this shadow struct so the digest covers the canonical content plus the
// previous hash, never the hash field itself.
type canonicalRecord struct {
	Seq               uint64            `json:"seq"`
	Timestamp         string            `json:"ts"`
	Action            model.Action      `json:"action"`
	Subject           string            `json:"subject,omitempty"`
	RiskLevel         model.RiskLevel   `json:"risk_level"`
	ConsentRequired   bool              `json:"consent_required"`
	ConsentGranted    bool              `json:"consent_granted"`
	DataTokenized     bool              `json:"data_tokenized"`
	InjectionDetected bool              `json:"injection_detected"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	PrevHash          string            `json:"prev_hash"`
}

// ComputeHash returns "sha256:<hex>" of the record's canonical content.
func ComputeHash(r AuditRecord) string {
	c := canonicalRecord{
		Seq:               r.Seq,
		Timestamp:         r.Timestamp,
		Action:            r.Action,
		Subject:           r.Subject,
		RiskLevel:         r.RiskLevel,
		ConsentRequired:   r.ConsentRequired,
		ConsentGranted:    r.ConsentGranted,
		DataTokenized:     r.DataTokenized,
		InjectionDetected: r.InjectionDetected,
		Metadata:          r.Metadata,
		PrevHash:          r.PrevHash,
	}
	// Marshal of a struct with only string/bool/uint64/map[string]string
	// fields cannot fail.
	line, _ := json.Marshal(c)
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
