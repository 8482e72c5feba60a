// Package trustplane is a trust and governance layer for AI agent
// pipelines. It wraps an agent's tool invocations and model calls with four
// primitives: a tamper-evident audit ledger, a reversible tokenization
// vault, a risk-tiered consent gate, and a deterministic injection scanner.
//
// The core is an explicitly constructed value with a construct → use → drop
// lifecycle:
//
//	core, err := trustplane.New(nil)
//	if err != nil { ... }
//	defer core.Close()
//
//	verdict, err := core.BeforeToolCall(ctx, trustplane.ToolCall{
//		Tool:  "delete_database",
//		Input: map[string]any{"name": "prod"},
//	})
//	if err != nil { ... }
//	if !verdict.Allowed {
//		// blocked by the consent gate; a consent_denied record was appended
//	}
//
// Binding these hooks to a specific agent framework's interception points is
// the adapter's job; trustplane only defines the call shapes and the
// decisions.
package trustplane
