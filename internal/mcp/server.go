// Package mcp exposes the trust primitives as MCP tools so agents can
// consult the trust layer over stdio: risk dry-runs, injection scans,
// tokenization, and audit chain inspection.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/airlabs/trustplane"
)

// Server wraps the MCP SDK server around a trustplane Core.
type Server struct {
	mcpServer *mcpsdk.Server
	core      *trustplane.Core
}

// New creates an MCP server for an already-constructed Core.
func New(core *trustplane.Core) *Server {
	s := &Server{
		core: core,
		mcpServer: mcpsdk.NewServer(
			&mcpsdk.Implementation{
				Name:    "trustplane",
				Version: "0.1.0",
			},
			nil,
		),
	}
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all trustplane tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_check",
		Description: "Classify a tool name's risk level and report whether consent would be required. Dry-run: nothing is executed or recorded.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_scan",
		Description: "Scan text for prompt-manipulation patterns. Returns the score, matched rule identifiers, and whether the text would be blocked.",
	}, s.handleScan)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_tokenize",
		Description: "Replace sensitive substrings (API keys, emails, high-entropy secrets) with opaque reversible placeholders.",
	}, s.handleTokenize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_detokenize",
		Description: "Resolve vault placeholders back to original values. Requires vault access; reveals secrets.",
	}, s.handleDetokenize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_audit_verify",
		Description: "Verify the integrity of the hash-chained audit ledger.",
	}, s.handleAuditVerify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_audit_stats",
		Description: "Summarize the audit ledger: entry counts by action and risk level, chain validity.",
	}, s.handleAuditStats)
}
