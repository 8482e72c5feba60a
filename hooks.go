package trustplane

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/airlabs/trustplane/internal/ledger"
	"github.com/airlabs/trustplane/internal/model"
	"github.com/airlabs/trustplane/internal/scanner"
)

// ToolCall describes one intended tool invocation. The adapter translates
// its framework's call object into this shape.
type ToolCall struct {
	Tool  string
	Input map[string]any
}

// ToolResult describes a completed tool invocation.
type ToolResult struct {
	Tool string
}

// Message is one model-bound message.
type Message struct {
	Role    string
	Content string
}

// ModelCall describes content about to be sent to a model.
type ModelCall struct {
	Model    string
	Messages []Message
}

// ModelResponse describes a model's reply.
type ModelResponse struct {
	Model   string
	Content string
}

// ToolVerdict is the decision for one tool call. Input holds the tokenized
// input when tokenization applied; the caller's structures are never
// mutated — splicing the verdict back in is the adapter's job.
type ToolVerdict struct {
	Allowed   bool
	Reason    string
	Input     map[string]any
	Tokenized bool
}

// ModelVerdict is the decision for one model call. Messages hold tokenized
// content when tokenization applied.
type ModelVerdict struct {
	Allowed   bool
	Reason    string
	Messages  []Message
	Tokenized bool
	Scan      scanner.ScanResult
}

// BeforeToolCall runs the pre-tool pipeline: tokenize input, evaluate the
// consent gate, append a tool_call record. The returned error is non-nil
// only when durable ledger persistence fails.
func (c *Core) BeforeToolCall(ctx context.Context, call ToolCall) (ToolVerdict, error) {
	cfg, gate, _ := c.snapshot()

	verdict := ToolVerdict{Allowed: true, Input: call.Input}
	if !cfg.Enabled {
		return verdict, nil
	}

	if c.vault != nil && len(call.Input) > 0 {
		verdict.Input, verdict.Tokenized = c.tokenizeInput(call.Input)
	}

	riskLevel := model.RiskLow
	consentRequired := false
	if gate != nil {
		riskLevel = gate.ClassifyRisk(call.Tool)
		consentRequired = gate.RequiresConsent(call.Tool)

		res := gate.Intercept(ctx, call.Tool, verdict.Input)
		if res.Blocked {
			// The gate already appended the consent_denied record.
			return ToolVerdict{Reason: res.Reason, Input: verdict.Input, Tokenized: verdict.Tokenized}, nil
		}
	}

	if err := c.append(ledger.Fields{
		Action:          model.ActionToolCall,
		Subject:         call.Tool,
		RiskLevel:       riskLevel,
		ConsentRequired: consentRequired,
		ConsentGranted:  true,
		DataTokenized:   verdict.Tokenized,
	}); err != nil {
		return ToolVerdict{}, err
	}
	return verdict, nil
}

// AfterToolCall appends the post-execution tool_result record.
func (c *Core) AfterToolCall(ctx context.Context, result ToolResult) error {
	cfg, gate, _ := c.snapshot()
	if !cfg.Enabled {
		return nil
	}
	riskLevel := model.RiskLow
	if gate != nil {
		riskLevel = gate.ClassifyRisk(result.Tool)
	}
	return c.append(ledger.Fields{
		Action:    model.ActionToolResult,
		Subject:   result.Tool,
		RiskLevel: riskLevel,
	})
}

// BeforeModelCall runs the pre-model pipeline: tokenize message content,
// scan it for manipulation patterns, record a detection, and block when the
// score crosses the threshold.
func (c *Core) BeforeModelCall(ctx context.Context, call ModelCall) (ModelVerdict, error) {
	cfg, _, sc := c.snapshot()

	verdict := ModelVerdict{Allowed: true, Messages: call.Messages}
	if !cfg.Enabled || len(call.Messages) == 0 {
		return verdict, nil
	}

	if c.vault != nil {
		tokenized := make([]Message, len(call.Messages))
		for i, m := range call.Messages {
			res := c.vault.Tokenize(m.Content)
			tokenized[i] = Message{Role: m.Role, Content: res.Result}
			if res.Tokenized {
				verdict.Tokenized = true
			}
		}
		verdict.Messages = tokenized
	}

	var parts []string
	for _, m := range verdict.Messages {
		parts = append(parts, m.Content)
	}
	content := strings.Join(parts, "\n")
	if strings.TrimSpace(content) == "" {
		return verdict, nil
	}

	if sc != nil {
		verdict.Scan = sc.Scan(content)
		if verdict.Scan.Detected && cfg.Injection.LogDetections {
			if err := c.append(ledger.Fields{
				Action:            model.ActionInjectionDetected,
				Subject:           call.Model,
				RiskLevel:         injectionRisk(verdict.Scan.Score),
				DataTokenized:     verdict.Tokenized,
				InjectionDetected: true,
				Metadata: map[string]string{
					"score":    fmt.Sprintf("%.2f", verdict.Scan.Score),
					"patterns": strings.Join(verdict.Scan.MatchedPatterns, ","),
					"blocked":  strconv.FormatBool(verdict.Scan.Blocked),
					"source":   "llm_input",
				},
			}); err != nil {
				return ModelVerdict{}, err
			}
		}
		if verdict.Scan.Blocked {
			verdict.Allowed = false
			verdict.Reason = fmt.Sprintf("injection score %.2f over threshold (patterns: %s)",
				verdict.Scan.Score, strings.Join(verdict.Scan.MatchedPatterns, ", "))
			return verdict, nil
		}
	}

	if err := c.append(ledger.Fields{
		Action:            model.ActionLLMInput,
		Subject:           call.Model,
		RiskLevel:         model.RiskNone,
		DataTokenized:     verdict.Tokenized,
		InjectionDetected: verdict.Scan.Detected,
	}); err != nil {
		return ModelVerdict{}, err
	}
	return verdict, nil
}

// AfterModelCall appends the llm_output record with model identity and
// response length metadata.
func (c *Core) AfterModelCall(ctx context.Context, resp ModelResponse) error {
	cfg, _, _ := c.snapshot()
	if !cfg.Enabled {
		return nil
	}
	return c.append(ledger.Fields{
		Action:    model.ActionLLMOutput,
		Subject:   resp.Model,
		RiskLevel: model.RiskNone,
		Metadata: map[string]string{
			"model":          resp.Model,
			"content_length": strconv.Itoa(len(resp.Content)),
		},
	})
}

// tokenizeInput round-trips the input map through JSON so nested string
// values are covered, then decodes the tokenized text into a fresh map.
// The caller's map is never touched.
func (c *Core) tokenizeInput(input map[string]any) (map[string]any, bool) {
	raw, err := json.Marshal(input)
	if err != nil {
		return input, false
	}
	res := c.vault.Tokenize(string(raw))
	if !res.Tokenized {
		return input, false
	}
	tokenized := make(map[string]any, len(input))
	if err := json.Unmarshal([]byte(res.Result), &tokenized); err != nil {
		// Tokenization broke the JSON shape (placeholder landed across a
		// quote); pass the original through rather than corrupt the call.
		return input, false
	}
	return tokenized, true
}

func (c *Core) append(f ledger.Fields) error {
	if c.ledger == nil {
		return nil
	}
	if f.Metadata == nil {
		f.Metadata = map[string]string{}
	}
	f.Metadata["trace_id"] = c.traceID
	_, err := c.ledger.Append(f)
	return err
}

// injectionRisk buckets a scan score into a ledger risk level.
func injectionRisk(score float64) model.RiskLevel {
	switch {
	case score >= 0.8:
		return model.RiskCritical
	case score >= 0.5:
		return model.RiskHigh
	default:
		return model.RiskMedium
	}
}
