// Package gateway implements HTTP clients for the optional remote compliance
// sink and the vault key-store mirror. Delivery is best-effort: failures are
// reported to the caller for logging, never escalated.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/airlabs/trustplane/internal/ledger"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
)

var httpClient = &http.Client{Timeout: requestTimeout}

// HTTPSink posts audit records to a compliance endpoint. Implements
// ledger.Sink.
type HTTPSink struct {
	url    string
	apiKey string
}

// NewHTTPSink creates a sink for the given endpoint. apiKey may be empty.
func NewHTTPSink(url, apiKey string) *HTTPSink {
	return &HTTPSink{url: url, apiKey: apiKey}
}

// Send posts one record as JSON, retrying on server errors with linear
// backoff. A 4xx response is not retried.
func (s *HTTPSink) Send(rec ledger.AuditRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return post(s.url, s.apiKey, body)
}

func post(url, apiKey string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("endpoint rejected: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("endpoint server error: HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

// KeyStoreMirror posts token mappings to a restricted remote key store so
// tokens can be resolved outside the originating process. Implements
// vault.Mirror.
type KeyStoreMirror struct {
	url    string
	apiKey string
}

// NewKeyStoreMirror creates a mirror client for the given endpoint.
func NewKeyStoreMirror(url, apiKey string) *KeyStoreMirror {
	return &KeyStoreMirror{url: url, apiKey: apiKey}
}

// mirrorEntry is the key-store wire format for one token mapping.
type mirrorEntry struct {
	TokenID       string `json:"token_id"`
	OriginalValue string `json:"original_value"`
	PatternKind   string `json:"pattern_kind"`
	CreatedAt     string `json:"created_at"`
}

// Put uploads one token mapping.
func (m *KeyStoreMirror) Put(tokenID, originalValue, patternKind, createdAt string) error {
	body, err := json.Marshal(mirrorEntry{
		TokenID:       tokenID,
		OriginalValue: originalValue,
		PatternKind:   patternKind,
		CreatedAt:     createdAt,
	})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return post(m.url, m.apiKey, body)
}
