package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/airlabs/trustplane/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
	seq                INTEGER PRIMARY KEY,
	ts                 TEXT NOT NULL,
	action             TEXT NOT NULL,
	subject            TEXT NOT NULL DEFAULT '',
	risk_level         TEXT NOT NULL,
	consent_required   INTEGER NOT NULL,
	consent_granted    INTEGER NOT NULL,
	data_tokenized     INTEGER NOT NULL,
	injection_detected INTEGER NOT NULL,
	metadata           TEXT NOT NULL DEFAULT '',
	prev_hash          TEXT NOT NULL,
	record_hash        TEXT NOT NULL
);`

// SQLiteStore persists records in a local SQLite database. Appends run with
// synchronous=FULL so a committed insert survives a crash.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite-backed store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts the record. The seq primary key rejects duplicates, which
// would indicate two ledgers sharing one store.
func (s *SQLiteStore) Append(rec AuditRecord) error {
	meta := ""
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_records
		 (seq, ts, action, subject, risk_level, consent_required, consent_granted,
		  data_tokenized, injection_detected, metadata, prev_hash, record_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.Timestamp, string(rec.Action), rec.Subject, string(rec.RiskLevel),
		boolInt(rec.ConsentRequired), boolInt(rec.ConsentGranted),
		boolInt(rec.DataTokenized), boolInt(rec.InjectionDetected),
		meta, rec.PrevHash, rec.RecordHash,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Load reads all records ordered by seq.
func (s *SQLiteStore) Load() ([]AuditRecord, error) {
	rows, err := s.db.Query(
		`SELECT seq, ts, action, subject, risk_level, consent_required, consent_granted,
		        data_tokenized, injection_detected, metadata, prev_hash, record_hash
		 FROM audit_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var action, risk, meta string
		var required, granted, tokenized, injected int
		if err := rows.Scan(&rec.Seq, &rec.Timestamp, &action, &rec.Subject, &risk,
			&required, &granted, &tokenized, &injected, &meta, &rec.PrevHash, &rec.RecordHash); err != nil {
			return nil, &CorruptError{Seq: len(records) + 1, Err: err}
		}
		rec.Action = model.Action(action)
		rec.RiskLevel = model.RiskLevel(risk)
		rec.ConsentRequired = required != 0
		rec.ConsentGranted = granted != 0
		rec.DataTokenized = tokenized != 0
		rec.InjectionDetected = injected != 0
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
				return nil, &CorruptError{Seq: len(records) + 1, Err: err}
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrStoreEmpty
	}
	return records, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
