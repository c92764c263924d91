package toolresult

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess(t *testing.T) {
	env := Success(map[string]string{"echo": "hi"})

	assert.Equal(t, StatusOK, env.Status())
	assert.True(t, env.OK())
	assert.Nil(t, env.Error())
	assert.Empty(t, env.Code())
	assert.Equal(t, RollbackNone, env.RollbackHint())

	data, ok := env.Data()
	require.True(t, ok)
	assert.Equal(t, "hi", data["echo"])
}

func TestFailureAndRetryable(t *testing.T) {
	tests := []struct {
		name   string
		env    Envelope[int]
		status Status
	}{
		{"failure", Failure[int]("UPSTREAM_DOWN", "boom"), StatusError},
		{"retryable", Retryable[int]("UPSTREAM_TIMEOUT", "slow"), StatusRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.env.Status())
			assert.False(t, tt.env.OK())
			assert.Equal(t, RollbackState, tt.env.RollbackHint())

			_, ok := tt.env.Data()
			assert.False(t, ok)
			require.NotNil(t, tt.env.Error())
			assert.NotEmpty(t, tt.env.Code())
		})
	}
}

func TestEnvelope_ErrorReturnsCopy(t *testing.T) {
	env := Failure[any]("X", "original")
	env.Error().Message = "mutated"

	assert.Equal(t, "original", env.Error().Message)
}

func TestEnvelope_IsZero(t *testing.T) {
	var env Envelope[string]
	assert.True(t, env.IsZero())
	assert.False(t, Success("x").IsZero())
	assert.False(t, Failure[string]("C", "m").IsZero())
}

func TestEnvelope_Erase(t *testing.T) {
	erased := Success(42).Erase()
	data, ok := erased.Data()
	require.True(t, ok)
	assert.Equal(t, 42, data)
	assert.Equal(t, RollbackNone, erased.RollbackHint())

	failed := Retryable[int]("T", "later").Erase()
	_, ok = failed.Data()
	assert.False(t, ok)
	assert.Equal(t, StatusRetry, failed.Status())
	assert.Equal(t, "T", failed.Code())
}

func TestEnvelope_MarshalJSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		b, err := json.Marshal(Success(map[string]string{"echo": "hello"}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"s":"ok","d":{"echo":"hello"},"e":null,"rb":"none"}`, string(b))
	})

	t.Run("failure", func(t *testing.T) {
		b, err := json.Marshal(Failure[map[string]string](CodeBadArgs, "text is required"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"s":"error","d":null,"e":{"code":"BAD_ARGS","msg":"text is required"},"rb":"state"}`, string(b))
	})

	t.Run("retry", func(t *testing.T) {
		b, err := json.Marshal(Retryable[any]("FETCH_TIMEOUT", "deadline"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"s":"retry","d":null,"e":{"code":"FETCH_TIMEOUT","msg":"deadline"},"rb":"state"}`, string(b))
	})
}

func TestEnvelope_UnmarshalJSON(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		var env Envelope[map[string]any]
		require.NoError(t, json.Unmarshal([]byte(`{"s":"ok","d":{"n":1},"e":null,"rb":"none"}`), &env))
		data, ok := env.Data()
		require.True(t, ok)
		assert.Equal(t, float64(1), data["n"])
	})

	t.Run("error keeps tools rollback", func(t *testing.T) {
		var env Envelope[any]
		require.NoError(t, json.Unmarshal([]byte(`{"s":"error","d":null,"e":{"code":"X","msg":"m"},"rb":"tools"}`), &env))
		assert.Equal(t, StatusError, env.Status())
		assert.Equal(t, RollbackTools, env.RollbackHint())
	})

	invalid := map[string]string{
		"unknown status":    `{"s":"maybe","d":null,"e":null,"rb":"none"}`,
		"ok with error":     `{"s":"ok","d":1,"e":{"code":"X","msg":"m"},"rb":"none"}`,
		"error without err": `{"s":"error","d":null,"e":null,"rb":"state"}`,
		"retry with data":   `{"s":"retry","d":1,"e":{"code":"X","msg":"m"},"rb":"state"}`,
		"ok with state":     `{"s":"ok","d":null,"e":null,"rb":"state"}`,
		"ok without rb":     `{"s":"ok","d":1,"e":null}`,
		"error with none":   `{"s":"error","d":null,"e":{"code":"X","msg":"m"},"rb":"none"}`,
		"retry unknown rb":  `{"s":"retry","d":null,"e":{"code":"X","msg":"m"},"rb":"all"}`,
	}
	for name, payload := range invalid {
		t.Run(name, func(t *testing.T) {
			var env Envelope[any]
			assert.Error(t, json.Unmarshal([]byte(payload), &env))
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusOK.Valid())
	assert.True(t, StatusError.Valid())
	assert.True(t, StatusRetry.Valid())
	assert.False(t, Status("OK").Valid())
	assert.False(t, Status("").Valid())
}
