package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with a config file that does not exist unless the test wrote it.
func run(t *testing.T, configPath, stdin string, args ...string) result {
	t.Helper()
	if configPath == "" {
		configPath = filepath.Join(t.TempDir(), "missing.json")
	}

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return ExitCodeOK
	}
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	return exitErr.Code
}

func decodeEnvelope(t *testing.T, out string) toolresult.Envelope[map[string]interface{}] {
	t.Helper()
	require.NoError(t, toolresult.Check([]byte(out)))
	var env toolresult.Envelope[map[string]interface{}]
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	return env
}

func TestToolsCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		res := run(t, "", "", "tools", "--output", "json")
		require.NoError(t, res.err)

		var infos []tool.Info
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &infos))
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, info.Name)
		}
		assert.Len(t, infos, 15)
		assert.Contains(t, names, "echo")
		assert.Contains(t, names, "llm_verify")
		assert.IsIncreasing(t, names)
	})

	t.Run("yaml", func(t *testing.T) {
		res := run(t, "", "", "tools", "-o", "yaml")
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "- name: echo")
		assert.Contains(t, res.stdout, "retry_safe: true")
	})

	t.Run("table", func(t *testing.T) {
		res := run(t, "", "", "tools")
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "NAME")
		assert.Contains(t, res.stdout, "text*")
	})

	t.Run("unknown format", func(t *testing.T) {
		res := run(t, "", "", "tools", "-o", "xml")
		assert.ErrorContains(t, res.err, "unknown output format")
	})
}

func TestInvokeCommand(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		res := run(t, "", "", "invoke", "echo", "--args", `{"text": "  hello "}`)

		assert.Equal(t, ExitCodeOK, exitCode(t, res.err))
		assert.JSONEq(t, `{"s":"ok","d":{"echo":"hello"},"e":null,"rb":"none"}`, res.stdout)
	})

	t.Run("args from stdin", func(t *testing.T) {
		res := run(t, "", `{"text": "piped"}`, "invoke", "echo", "--args-file", "-")

		assert.Equal(t, ExitCodeOK, exitCode(t, res.err))
		data, _ := decodeEnvelope(t, res.stdout).Data()
		assert.Equal(t, "piped", data["echo"])
	})

	t.Run("args from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "args.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"text": "filed"}`), 0644))

		res := run(t, "", "", "invoke", "echo", "--args-file", path)

		assert.Equal(t, ExitCodeOK, exitCode(t, res.err))
	})

	for _, args := range [][]string{{}, {"--args", "null"}, {"--args", "[1]"}} {
		t.Run(fmt.Sprintf("absent args %v", args), func(t *testing.T) {
			res := run(t, "", "", append([]string{"invoke", "echo"}, args...)...)

			assert.Equal(t, ExitCodeError, exitCode(t, res.err))
			env := decodeEnvelope(t, res.stdout)
			assert.Equal(t, toolresult.CodeBadArgs, env.Code())
		})
	}

	t.Run("unknown tool", func(t *testing.T) {
		res := run(t, "", "", "invoke", "nope", "--args", `{}`)

		assert.Equal(t, ExitCodeError, exitCode(t, res.err))
		assert.Equal(t, tool.CodeUnknownTool, decodeEnvelope(t, res.stdout).Code())
	})

	t.Run("policy denies tool", func(t *testing.T) {
		cfg := writeConfig(t, `{"tools": {"policy": {"allow": ["*"], "deny": ["echo"]}}}`)

		res := run(t, cfg, "", "invoke", "echo", "--args", `{"text": "x"}`)

		assert.Equal(t, ExitCodeError, exitCode(t, res.err))
		assert.Equal(t, tool.CodeScope, decodeEnvelope(t, res.stdout).Code())
	})

	t.Run("retry exit code", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer upstream.Close()
		cfg := writeConfig(t, fmt.Sprintf(`{"tools": {"search": {"wiki_endpoint": %q}}}`, upstream.URL))

		res := run(t, cfg, "", "invoke", "search", "--args", `{"q": "moon landing"}`)

		assert.Equal(t, ExitCodeRetry, exitCode(t, res.err))
		env := decodeEnvelope(t, res.stdout)
		assert.Equal(t, toolresult.StatusRetry, env.Status())
	})

	t.Run("invalid JSON is a usage error", func(t *testing.T) {
		res := run(t, "", "", "invoke", "echo", "--args", `{"text":`)

		assert.ErrorContains(t, res.err, "not valid JSON")
		var exitErr *ExitError
		assert.False(t, errors.As(res.err, &exitErr))
		assert.Empty(t, res.stdout)
	})

	t.Run("mutually exclusive flags", func(t *testing.T) {
		res := run(t, "", "", "invoke", "echo", "--args", `{}`, "--args-file", "-")
		assert.ErrorContains(t, res.err, "mutually exclusive")
	})

	t.Run("logs stay off stdout", func(t *testing.T) {
		res := run(t, "", "", "--log-level", "debug", "invoke", "echo", "--args", `{"text": "x"}`)

		require.NoError(t, res.err)
		assert.Contains(t, res.stderr, "Tool invocation completed")
		assert.NotContains(t, res.stdout, "Tool invocation completed")
	})

	t.Run("invalid config", func(t *testing.T) {
		res := run(t, "", "", "--log-level", "loud", "invoke", "echo", "--args", `{"text": "x"}`)
		assert.ErrorContains(t, res.err, "invalid configuration")
	})
}

func TestInvokeWritesAuditLog(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	cfg := writeConfig(t, fmt.Sprintf(`{"logging": {"audit_file": %q}}`, auditPath))

	res := run(t, cfg, "", "invoke", "echo", "--args", `{"text": "x"}`)
	require.NoError(t, res.err)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"invoke:echo"`)
}

func TestCheckCommand(t *testing.T) {
	t.Run("valid envelope from stdin", func(t *testing.T) {
		res := run(t, "", `{"s":"error","d":null,"e":{"code":"BAD_ARGS","msg":"x"},"rb":"state"}`, "check")

		require.NoError(t, res.err)
		assert.Equal(t, "ok\n", res.stdout)
	})

	t.Run("invalid envelope from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "payload.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"s":"ok","d":{},"e":null,"rb":"state"}`), 0644))

		res := run(t, "", "", "check", path)

		assert.Equal(t, ExitCodeError, exitCode(t, res.err))
		assert.True(t, strings.HasPrefix(res.stdout, "invalid: "))
	})

	t.Run("missing file", func(t *testing.T) {
		res := run(t, "", "", "check", filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorContains(t, res.err, "failed to read payload")
	})

	t.Run("sanitize drops unknown members", func(t *testing.T) {
		res := run(t, "", `{"s":"ok","d":{"text":"hi"},"e":null,"rb":"none","x":1}`, "check", "--sanitize")
		require.NoError(t, res.err)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
		assert.NotContains(t, out, "x")
		assert.Equal(t, "ok", out["s"])
		assert.Equal(t, "none", out["rb"])
	})

	t.Run("sanitize still rejects a bad envelope", func(t *testing.T) {
		res := run(t, "", `{"s":"ok","d":{},"e":null,"rb":"state","x":1}`, "check", "--sanitize")
		assert.Equal(t, ExitCodeError, exitCode(t, res.err))
		assert.True(t, strings.HasPrefix(res.stdout, "invalid: "))
	})

	t.Run("sanitize rejects non-objects", func(t *testing.T) {
		res := run(t, "", `[1,2]`, "check", "--sanitize")
		assert.Equal(t, ExitCodeError, exitCode(t, res.err))
	})
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factkit.yaml")

	res := run(t, path, "", "config", "init")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, path)
	_, err := os.Stat(path)
	require.NoError(t, err)

	res = run(t, path, "", "config", "init")
	assert.ErrorContains(t, res.err, "already exists")

	res = run(t, path, "", "config", "init", "--force")
	require.NoError(t, res.err)

	t.Setenv("FACTKIT_TOOLS_LLM_API_KEY", "sk-hidden-from-output")
	res = run(t, path, "", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"model": "qwen"`)
	assert.NotContains(t, res.stdout, "sk-hidden-from-output")
}

func TestServeCommand(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.json"), "serve", "--port", fmt.Sprint(port)})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Post(base+"/v1/tools/echo/invoke", "application/json", strings.NewReader(`{"text":"served"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"s":"ok","d":{"echo":"served"},"e":null,"rb":"none"}`, strings.TrimSpace(string(body)))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestToolOptions(t *testing.T) {
	cfg := writeConfig(t, `{"tools": {"http_timeout_seconds": 3, "top_n": 5, "llm": {"model": "m"}}}`)
	loaded, err := loadConfig(&globalOptions{cfgFile: cfg})
	require.NoError(t, err)

	opts := toolOptions(loaded)

	assert.Equal(t, 3*time.Second, opts.HTTPTimeout)
	assert.Equal(t, 5, opts.TopN)
	assert.Equal(t, "m", opts.LLM.Model)
	assert.Equal(t, 1.5, opts.Decide.RefuteMin)
}
