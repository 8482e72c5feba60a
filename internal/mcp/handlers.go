package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- Input/Output types ---

// CheckInput defines parameters for the trust_check tool.
type CheckInput struct {
	Tool string `json:"tool" jsonschema:"tool name to classify"`
}

// CheckOutput contains the risk classification.
type CheckOutput struct {
	Tool            string `json:"tool"`
	RiskLevel       string `json:"risk_level"`
	ConsentRequired bool   `json:"consent_required"`
}

// ScanInput defines parameters for the trust_scan tool.
type ScanInput struct {
	Text string `json:"text" jsonschema:"text to scan for manipulation patterns"`
}

// ScanOutput contains the scan verdict.
type ScanOutput struct {
	Detected        bool     `json:"detected"`
	Score           float64  `json:"score"`
	MatchedPatterns []string `json:"matched_patterns"`
	Blocked         bool     `json:"blocked"`
}

// TokenizeInput defines parameters for the trust_tokenize tool.
type TokenizeInput struct {
	Text string `json:"text" jsonschema:"text containing potentially sensitive values"`
}

// TokenizeOutput contains the tokenized text.
type TokenizeOutput struct {
	Tokenized bool   `json:"tokenized"`
	Result    string `json:"result"`
	NewTokens int    `json:"new_tokens"`
}

// DetokenizeInput defines parameters for the trust_detokenize tool.
type DetokenizeInput struct {
	Text string `json:"text" jsonschema:"text containing vault placeholders"`
}

// DetokenizeOutput contains the resolved text.
type DetokenizeOutput struct {
	Result string `json:"result"`
}

// VerifyInput is empty — the ledger is fixed at server start.
type VerifyInput struct{}

// VerifyOutput contains the chain verification result.
type VerifyOutput struct {
	Valid           bool   `json:"valid"`
	TotalEntries    int    `json:"total_entries"`
	FirstInvalidSeq uint64 `json:"first_invalid_seq,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// StatsInput is empty.
type StatsInput struct{}

// StatsOutput summarizes the ledger.
type StatsOutput struct {
	TotalEntries   int            `json:"total_entries"`
	ChainValid     bool           `json:"chain_valid"`
	CountsByRisk   map[string]int `json:"counts_by_risk_level"`
	CountsByAction map[string]int `json:"counts_by_action"`
}

// --- Handlers ---

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	gate := s.core.Gate()
	if gate == nil {
		return nil, CheckOutput{}, fmt.Errorf("consent gate is disabled")
	}
	return nil, CheckOutput{
		Tool:            input.Tool,
		RiskLevel:       string(gate.ClassifyRisk(input.Tool)),
		ConsentRequired: gate.RequiresConsent(input.Tool),
	}, nil
}

func (s *Server) handleScan(ctx context.Context, req *mcpsdk.CallToolRequest, input ScanInput) (*mcpsdk.CallToolResult, ScanOutput, error) {
	sc := s.core.Scanner()
	if sc == nil {
		return nil, ScanOutput{}, fmt.Errorf("injection scanner is disabled")
	}
	result := sc.Scan(input.Text)
	out := ScanOutput{
		Detected:        result.Detected,
		Score:           result.Score,
		MatchedPatterns: result.MatchedPatterns,
		Blocked:         result.Blocked,
	}
	if result.Blocked {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleTokenize(ctx context.Context, req *mcpsdk.CallToolRequest, input TokenizeInput) (*mcpsdk.CallToolResult, TokenizeOutput, error) {
	v := s.core.Vault()
	if v == nil {
		return nil, TokenizeOutput{}, fmt.Errorf("vault is disabled")
	}
	result := v.Tokenize(input.Text)
	return nil, TokenizeOutput{
		Tokenized: result.Tokenized,
		Result:    result.Result,
		NewTokens: len(result.Tokens),
	}, nil
}

func (s *Server) handleDetokenize(ctx context.Context, req *mcpsdk.CallToolRequest, input DetokenizeInput) (*mcpsdk.CallToolResult, DetokenizeOutput, error) {
	v := s.core.Vault()
	if v == nil {
		return nil, DetokenizeOutput{}, fmt.Errorf("vault is disabled")
	}
	return nil, DetokenizeOutput{Result: v.Detokenize(input.Text)}, nil
}

func (s *Server) handleAuditVerify(ctx context.Context, req *mcpsdk.CallToolRequest, input VerifyInput) (*mcpsdk.CallToolResult, VerifyOutput, error) {
	result := s.core.VerifyChain()
	out := VerifyOutput{
		Valid:           result.Valid,
		TotalEntries:    result.TotalEntries,
		FirstInvalidSeq: result.FirstInvalidSeq,
		Reason:          result.Reason,
	}
	if !result.Valid {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleAuditStats(ctx context.Context, req *mcpsdk.CallToolRequest, input StatsInput) (*mcpsdk.CallToolResult, StatsOutput, error) {
	stats := s.core.AuditStats()
	out := StatsOutput{
		TotalEntries:   stats.TotalEntries,
		ChainValid:     stats.ChainValid,
		CountsByRisk:   make(map[string]int, len(stats.CountsByRisk)),
		CountsByAction: make(map[string]int, len(stats.CountsByAction)),
	}
	for level, n := range stats.CountsByRisk {
		out.CountsByRisk[string(level)] = n
	}
	for action, n := range stats.CountsByAction {
		out.CountsByAction[string(action)] = n
	}
	return nil, out, nil
}
