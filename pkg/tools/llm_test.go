package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

type chatServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newChatServer(t *testing.T, status int, reply string) *chatServer {
	t.Helper()
	cs := &chatServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Contains(t, body.Messages[1].Content, "Claim: The sky is green")
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream said no","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []interface{}{
				map[string]interface{}{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]interface{}{"role": "assistant", "content": reply},
				},
			},
		})
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newTestLLMVerify(srv *chatServer) *LLMVerify {
	return NewLLMVerify(LLMOptions{BaseURL: srv.URL + "/v1/", Model: "test-model", MaxRetries: 0})
}

func TestLLMVerify_Label(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, " Refute. ")

	env := tool.Invoke[Label](context.Background(), newTestLLMVerify(srv), tool.Args{
		"claim": "The sky is green",
		"evidence": []interface{}{
			"The sky appears blue on a clear day.",
			map[string]interface{}{"text": "Rayleigh scattering favours blue light."},
			42,
		},
	})
	data := requireOK(t, env)

	assert.Equal(t, Label{Label: LabelRefute, Called: true}, data)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestLLMVerify_NoEvidenceSkipsModel(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, "Support")

	env := tool.Invoke[Label](context.Background(), newTestLLMVerify(srv), tool.Args{"claim": "The sky is green", "evidence": []interface{}{"  "}})
	data := requireOK(t, env)

	assert.Equal(t, Label{Label: LabelNEI}, data)
	assert.Zero(t, srv.calls.Load())
}

func TestLLMVerify_Failures(t *testing.T) {
	args := tool.Args{"claim": "The sky is green", "evidence": []interface{}{"The sky is blue."}}

	env := tool.Invoke[Label](context.Background(), newTestLLMVerify(newChatServer(t, http.StatusServiceUnavailable, "")), args)
	assert.Equal(t, toolresult.StatusRetry, env.Status())
	assert.Equal(t, "LLM_UNAVAILABLE", env.Code())

	env = tool.Invoke[Label](context.Background(), newTestLLMVerify(newChatServer(t, http.StatusBadRequest, "")), args)
	assert.Equal(t, toolresult.StatusError, env.Status())
	assert.Equal(t, "LLM_FAIL", env.Code())
}

func TestLLMVerify_BadArgs(t *testing.T) {
	verify := NewLLMVerify(LLMOptions{})

	env := tool.Invoke[Label](context.Background(), verify, tool.Args{"evidence": []interface{}{"x"}})
	assert.Equal(t, toolresult.CodeBadArgs, env.Code())

	env = tool.Invoke[Label](context.Background(), verify, tool.Args{"claim": "x", "evidence": "x"})
	assert.Equal(t, toolresult.CodeBadArgs, env.Code())
}

func TestParseLabel(t *testing.T) {
	tests := map[string]string{
		"Support":         LabelSupport,
		"refute.":         LabelRefute,
		"Answer: NEI":     LabelNEI,
		"I am not sure":   LabelNEI,
		"SUPPORTS, maybe": LabelSupport,

		"Refute. The evidence does not Support it": LabelRefute,
		"Refuted; see the second sentence":         LabelRefute,
		"It neither confirms nor denies: NEI":      LabelNEI,
		"NEI rather than Support":                  LabelNEI,
	}
	for reply, want := range tests {
		assert.Equal(t, want, parseLabel(reply), reply)
	}
}
