package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

func answerSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"s"},
		"properties": map[string]interface{}{
			"s": map[string]interface{}{"type": "string"},
			"n": map[string]interface{}{"type": "integer"},
		},
		"additionalProperties": false,
	}
}

func TestOutputVerify_Sanitizes(t *testing.T) {
	env := tool.Invoke[Verification](context.Background(), NewOutputVerify(), tool.Args{
		"data":   map[string]interface{}{"s": "ok", "x": float64(1)},
		"schema": answerSchema(),
	})
	data := requireOK(t, env)

	assert.Equal(t, map[string]interface{}{"s": "ok"}, data.Data)
	assert.True(t, data.Sanitized)
	assert.Empty(t, data.Errors)
}

func TestOutputVerify_ReportsViolations(t *testing.T) {
	args := tool.Args{"data": `{"s": 5}`, "schema": answerSchema()}

	data := requireOK(t, tool.Invoke[Verification](context.Background(), NewOutputVerify(), args))
	require.Len(t, data.Errors, 1)
	assert.Contains(t, data.Errors[0], "s")
	assert.False(t, data.Sanitized)

	args["strict"] = true
	env := tool.Invoke[Verification](context.Background(), NewOutputVerify(), args)
	assert.Equal(t, toolresult.StatusError, env.Status())
	assert.Equal(t, "SCHEMA_FAIL", env.Code())
}

func TestOutputVerify_NoSchemaPassesThrough(t *testing.T) {
	data := requireOK(t, tool.Invoke[Verification](context.Background(), NewOutputVerify(), tool.Args{"data": `[1,2]`}))
	assert.Equal(t, []interface{}{float64(1), float64(2)}, data.Data)
	assert.Empty(t, data.Errors)
}

func TestOutputVerify_BadArgs(t *testing.T) {
	tests := []struct {
		name string
		args tool.Args
	}{
		{"invalid json", tool.Args{"data": "{nope"}},
		{"schema not object", tool.Args{"data": "{}", "schema": "x"}},
		{"invalid schema", tool.Args{"data": "{}", "schema": map[string]interface{}{"type": "bogus"}}},
		{"strict not bool", tool.Args{"data": "{}", "strict": "yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tool.Invoke[Verification](context.Background(), NewOutputVerify(), tt.args)
			assert.Equal(t, toolresult.CodeBadArgs, env.Code())
		})
	}
}

func TestOutputVerify_EnvelopeSchema(t *testing.T) {
	env := toolresult.Success(map[string]string{"echo": "hi"})
	raw, err := env.MarshalJSON()
	require.NoError(t, err)

	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"s", "d", "e", "rb"},
		"properties": map[string]interface{}{
			"s":  map[string]interface{}{"enum": []interface{}{"ok", "error", "retry"}},
			"rb": map[string]interface{}{"enum": []interface{}{"none", "state"}},
		},
	}
	data := requireOK(t, tool.Invoke[Verification](context.Background(), NewOutputVerify(), tool.Args{
		"data":   string(raw),
		"schema": schema,
		"strict": true,
	}))
	assert.Empty(t, data.Errors)
}
