package core

import (
	"encoding/json"
	"strings"
)

const RedactedValue = "[REDACTED]"

func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

// RedactPayload decodes a JSON event object and masks credentials and
// customer contact data before it is logged. Payloads that are not JSON
// objects are reported by size only.
func RedactPayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	decoded := map[string]any{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"undecodable_bytes": len(raw)}
	}
	return redactSensitiveMap(decoded)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	sensitiveTokens := []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"signature",
		"email",
		"phone",
		"line1",
		"line2",
		"tax_id",
	}
	for _, token := range sensitiveTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "provider_id",
		"event_id",
		"event_type",
		"session_id",
		"order_id",
		"orderid",
		"userid",
		"idempotency_key",
		"trace_id",
		"request_id":
		return true
	default:
		return false
	}
}
