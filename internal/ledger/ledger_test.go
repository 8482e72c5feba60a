package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/airlabs/trustplane/internal/model"
)

func testFields(subject string) Fields {
	return Fields{
		Action:    model.ActionToolCall,
		Subject:   subject,
		RiskLevel: model.RiskLow,
	}
}

func TestAppendChainsRecords(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	first, err := l.Append(testFields("read_file"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", first.Seq)
	}
	if first.PrevHash != Genesis {
		t.Fatalf("expected genesis prev_hash, got %s", first.PrevHash)
	}

	second, err := l.Append(testFields("write_file"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", second.Seq)
	}
	if second.PrevHash != first.RecordHash {
		t.Fatalf("record 2 prev_hash %s, want %s", second.PrevHash, first.RecordHash)
	}

	result := l.Verify()
	if !result.Valid {
		t.Fatalf("expected valid chain: %s", result.Reason)
	}
	if result.TotalEntries != 2 {
		t.Fatalf("expected 2 entries, got %d", result.TotalEntries)
	}
}

func TestVerifyEmptyLedgerIsValid(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	result := l.Verify()
	if !result.Valid {
		t.Fatalf("empty ledger should verify: %s", result.Reason)
	}
	if result.TotalEntries != 0 {
		t.Fatalf("expected 0 entries, got %d", result.TotalEntries)
	}
}

func TestVerifyDetectsAlteredContent(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	for i := 0; i < 3; i++ {
		if _, err := l.Append(testFields("read_file")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// Tamper with the middle record behind the ledger's back.
	l.records[1].Subject = "delete_everything"

	result := l.Verify()
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.FirstInvalidSeq != 2 {
		t.Fatalf("expected first invalid seq 2, got %d", result.FirstInvalidSeq)
	}
	if !strings.Contains(result.Reason, "content altered") {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
}

func TestVerifyDetectsSequenceGap(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	for i := 0; i < 3; i++ {
		if _, err := l.Append(testFields("read_file")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// Delete the middle record.
	l.records = append(l.records[:1], l.records[2:]...)

	result := l.Verify()
	if result.Valid {
		t.Fatal("expected chain with deleted record to be invalid")
	}
	if result.FirstInvalidSeq != 2 {
		t.Fatalf("expected first invalid seq 2, got %d", result.FirstInvalidSeq)
	}
}

func TestTimestampsNeverDecrease(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC),
		time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC), // clock stepped back
		time.Date(2026, 1, 1, 12, 0, 9, 0, time.UTC),
	}
	i := 0
	l, err := New(withClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	}))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	var recs []AuditRecord
	for range times {
		rec, err := l.Append(testFields("read_file"))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		recs = append(recs, rec)
	}

	if recs[1].Timestamp != recs[0].Timestamp {
		t.Fatalf("clamped timestamp %s, want %s", recs[1].Timestamp, recs[0].Timestamp)
	}
	if recs[2].Timestamp <= recs[1].Timestamp {
		t.Fatalf("timestamp %s should advance past %s", recs[2].Timestamp, recs[1].Timestamp)
	}
}

// flakyStore fails a fixed number of appends, then recovers.
type flakyStore struct {
	failures int
	recs     []AuditRecord
}

func (s *flakyStore) Append(rec AuditRecord) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *flakyStore) Load() ([]AuditRecord, error) { return nil, ErrStoreEmpty }
func (s *flakyStore) Close() error                 { return nil }

func TestFailedPersistLeavesNoState(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC), // append fails
		time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC),  // earlier clock, append succeeds
	}
	i := 0
	l, err := New(
		WithStore(&flakyStore{failures: 1}),
		withClock(func() time.Time {
			ts := times[i]
			i++
			return ts
		}))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	if _, err := l.Append(testFields("read_file")); err == nil {
		t.Fatal("expected persist failure")
	}

	rec, err := l.Append(testFields("read_file"))
	if err != nil {
		t.Fatalf("append after recovery: %v", err)
	}
	if rec.Seq != 1 {
		t.Fatalf("failed append must not consume a seq: got %d", rec.Seq)
	}
	if rec.PrevHash != Genesis {
		t.Fatalf("failed append must not advance the chain: prev_hash %s", rec.PrevHash)
	}
	if want := times[1].Format(TimestampFormat); rec.Timestamp != want {
		t.Fatalf("failed append ratcheted the clamp: timestamp %s, want %s", rec.Timestamp, want)
	}
}

func TestStatsCountsByRiskAndAction(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	l.Append(Fields{Action: model.ActionToolCall, Subject: "read_file", RiskLevel: model.RiskLow})
	l.Append(Fields{Action: model.ActionToolCall, Subject: "delete_user", RiskLevel: model.RiskCritical})
	l.Append(Fields{Action: model.ActionLLMInput, RiskLevel: model.RiskNone})

	s := l.Stats()
	if s.TotalEntries != 3 {
		t.Fatalf("expected 3 entries, got %d", s.TotalEntries)
	}
	if !s.ChainValid {
		t.Fatal("expected valid chain")
	}
	if s.CountsByAction[model.ActionToolCall] != 2 {
		t.Fatalf("expected 2 tool_call records, got %d", s.CountsByAction[model.ActionToolCall])
	}
	if s.CountsByRisk[model.RiskCritical] != 1 {
		t.Fatalf("expected 1 critical record, got %d", s.CountsByRisk[model.RiskCritical])
	}
}

func TestExportReturnsCopy(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	l.Append(testFields("read_file"))

	out := l.Export()
	out[0].Subject = "mutated"

	if l.Export()[0].Subject != "read_file" {
		t.Fatal("export must not share backing storage with the ledger")
	}
}

func TestConcurrentAppendsKeepChainValid(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if _, err := l.Append(testFields("read_file")); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	result := l.Verify()
	if !result.Valid {
		t.Fatalf("expected valid chain after concurrent appends: %s", result.Reason)
	}
	if result.TotalEntries != 200 {
		t.Fatalf("expected 200 entries, got %d", result.TotalEntries)
	}
}

func TestChainContinuesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	store, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	l, err := New(WithStore(store))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	last, err := l.Append(testFields("read_file"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	l.Close()

	store2, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	l2, err := New(WithStore(store2))
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	defer l2.Close()

	rec, err := l2.Append(testFields("write_file"))
	if err != nil {
		t.Fatalf("append after reload: %v", err)
	}
	if rec.Seq != 2 {
		t.Fatalf("expected seq 2 after reload, got %d", rec.Seq)
	}
	if rec.PrevHash != last.RecordHash {
		t.Fatalf("chain tail not re-derived: prev_hash %s, want %s", rec.PrevHash, last.RecordHash)
	}
	if result := l2.Verify(); !result.Valid {
		t.Fatalf("expected valid chain after reload: %s", result.Reason)
	}
}

func TestReloadedLedgerDetectsOnDiskTamper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	store, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	l, err := New(WithStore(store))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Append(Fields{Action: model.ActionToolCall, Subject: "send_payment", RiskLevel: model.RiskCritical}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	l.Close()

	// Edit record 2 on disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"send_payment"`, `"read_file"`, 1)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store2, err := OpenJSONL(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	l2, err := New(WithStore(store2))
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	defer l2.Close()

	result := l2.Verify()
	if result.Valid {
		t.Fatal("expected tampered file to fail verification")
	}
	if result.FirstInvalidSeq != 2 {
		t.Fatalf("expected first invalid seq 2, got %d", result.FirstInvalidSeq)
	}
}
