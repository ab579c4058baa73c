// Package proposal turns agent output into well-typed trade decisions.
//
// Sources (heuristic, Bedrock, OpenAI) produce raw bytes that may be
// malformed; Normalize is total over any input and always yields a usable
// Decision.
package proposal

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ayushsreejith06/max/internal/model"
)

// NoReasoning is used when neither the input nor the caller supplies a reason.
const NoReasoning = "no reasoning provided"

// Decision is a normalized worker proposal.
type Decision struct {
	Action            model.ActionType `json:"action"`
	AllocationPercent float64          `json:"allocationPercent"`
	Confidence        float64          `json:"confidence"`
	Reasoning         string           `json:"reasoning"`
}

var (
	actionKeys     = []string{"action", "decision", "side"}
	allocationKeys = []string{"allocationPercent", "allocation_percent", "allocation"}
	confidenceKeys = []string{"confidence"}
	reasoningKeys  = []string{"reasoning", "reason", "rationale"}
)

// Normalize converts raw into a Decision. It never fails: every missing,
// mistyped or out-of-range field degrades to HOLD, 0%, confidence 1 and the
// fallback reasoning.
func Normalize(raw any, fallbackReason string) (d Decision) {
	d = fallbackDecision(fallbackReason)
	defer func() {
		if r := recover(); r != nil {
			d = fallbackDecision(fallbackReason)
		}
	}()

	var fields map[string]any
	switch v := raw.(type) {
	case nil:
		return d
	case Decision:
		fields = decisionFields(v)
	case *Decision:
		if v == nil {
			return d
		}
		fields = decisionFields(*v)
	case json.RawMessage:
		fields = decodeObject(string(v))
	case []byte:
		fields = decodeObject(string(v))
	case string:
		fields = decodeObject(v)
	case map[string]any:
		fields = v
	default:
		return d
	}
	if fields == nil {
		return d
	}

	if s, ok := lookupString(fields, actionKeys); ok {
		d.Action = normalizeAction(s)
	}
	if f, ok := lookupNumber(fields, allocationKeys); ok {
		d.AllocationPercent = clamp(f, 0, 100)
	}
	if f, ok := lookupNumber(fields, confidenceKeys); ok {
		d.Confidence = clamp(f, 1, 100)
	}
	if s, ok := lookupString(fields, reasoningKeys); ok && strings.TrimSpace(s) != "" {
		d.Reasoning = strings.TrimSpace(s)
	}
	return d
}

func fallbackDecision(reason string) Decision {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = NoReasoning
	}
	return Decision{
		Action:            model.ActionHold,
		AllocationPercent: 0,
		Confidence:        1,
		Reasoning:         reason,
	}
}

func decisionFields(d Decision) map[string]any {
	return map[string]any{
		"action":            string(d.Action),
		"allocationPercent": d.AllocationPercent,
		"confidence":        d.Confidence,
		"reasoning":         d.Reasoning,
	}
}

// normalizeAction maps free-form action words onto BUY, SELL or HOLD.
func normalizeAction(s string) model.ActionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "deploy", "long":
		return model.ActionBuy
	case "sell", "withdraw", "short":
		return model.ActionSell
	}
	return model.ActionHold
}

func lookupString(fields map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func lookupNumber(fields map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// toFloat accepts JSON numbers and numeric strings such as "42" or "42%".
// NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// decodeObject extracts and decodes the first JSON object found in text.
func decodeObject(text string) map[string]any {
	candidate := ExtractJSON(text)
	if candidate == "" {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil
	}
	return fields
}

// ExtractJSON finds a JSON object in model output. It tries, in order, the
// whole text, a ```json fence, any ``` fence holding an object, and the
// first balanced {...} span. It returns "" when none is found.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "{") && strings.HasSuffix(content, "}") {
		return content
	}

	if idx := strings.Index(content, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(content[start:], "```"); end != -1 {
			return strings.TrimSpace(content[start : start+end])
		}
	}

	if idx := strings.Index(content, "```"); idx != -1 {
		start := idx + 3
		if nl := strings.Index(content[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(content[start:], "```"); end != -1 {
			extracted := strings.TrimSpace(content[start : start+end])
			if strings.HasPrefix(extracted, "{") {
				return extracted
			}
		}
	}

	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// FailureReason builds the fallback reasoning used when a source fails.
func FailureReason(agentName string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s returned no usable proposal", agentName)
	}
	return fmt.Sprintf("%s proposal failed: %v", agentName, err)
}
