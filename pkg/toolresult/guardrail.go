package toolresult

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema describes the wire form accepted from foreign producers
// (LLM skills, out-of-process tools) before it is trusted.
var envelopeSchema = gojsonschema.NewGoLoader(map[string]interface{}{
	"type":     "object",
	"required": []string{"s", "d", "e", "rb"},
	"properties": map[string]interface{}{
		"s":  map[string]interface{}{"enum": []string{"ok", "error", "retry"}},
		"rb": map[string]interface{}{"enum": []string{RollbackNone, RollbackState, RollbackTools}},
		"e": map[string]interface{}{
			"oneOf": []interface{}{
				map[string]interface{}{"type": "null"},
				map[string]interface{}{
					"type":     "object",
					"required": []string{"code", "msg"},
					"properties": map[string]interface{}{
						"code": map[string]interface{}{"type": "string", "minLength": 1},
						"msg":  map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	},
})

var compiledEnvelopeSchema = mustCompile(envelopeSchema)

func mustCompile(loader gojsonschema.JSONLoader) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		panic(fmt.Sprintf("toolresult: invalid envelope schema: %v", err))
	}
	return schema
}

// requiredKeys are the only top-level members of a wire envelope.
var requiredKeys = []string{"s", "d", "e", "rb"}

// Check validates a raw JSON payload as a well-formed envelope: shape per the
// envelope schema, then the status/data/error/rollback invariants.
func Check(payload []byte) error {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid json: %w", err)
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return fmt.Errorf("payload must be an object")
	}

	result, err := compiledEnvelopeSchema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid envelope: %s", strings.Join(msgs, "; "))
	}

	status := Status(obj["s"].(string))
	rb := obj["rb"].(string)
	hasErr := obj["e"] != nil
	hasData := obj["d"] != nil

	switch status {
	case StatusOK:
		if hasErr {
			return fmt.Errorf("invalid envelope: ok status with error")
		}
		if rb != RollbackNone {
			return fmt.Errorf("invalid envelope: ok status requires rb=%q, got %q", RollbackNone, rb)
		}
	default:
		if !hasErr {
			return fmt.Errorf("invalid envelope: %s status without error", status)
		}
		if hasData {
			return fmt.Errorf("invalid envelope: %s status with data", status)
		}
		if rb == RollbackNone {
			return fmt.Errorf("invalid envelope: %s status requires a rollback hint", status)
		}
	}
	return nil
}

// Sanitize drops every top-level member that is not part of the envelope.
// Missing members are filled with nil.
func Sanitize(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(requiredKeys))
	for _, k := range requiredKeys {
		out[k] = payload[k]
	}
	return out
}
