package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/execd/auth"
	"github.com/isdmx/execd/config"
	"github.com/isdmx/execd/mcpserver"
	"github.com/isdmx/execd/sandbox"
)

// MockSession implements Session for testing
type MockSession struct {
	result  sandbox.ExecutionResult
	state   sandbox.SessionState
	version string

	code        string
	splitOutput bool
	calls       int
}

func (m *MockSession) RunCode(_ context.Context, code string, splitOutput bool) sandbox.ExecutionResult {
	m.calls++
	m.code = code
	m.splitOutput = splitOutput
	return m.result
}

func (m *MockSession) State() sandbox.SessionState { return m.state }

func (m *MockSession) Version() string { return m.version }

// MockShell implements sandbox.ShellExecutor for testing
type MockShell struct {
	result      sandbox.ExecutionResult
	command     string
	splitOutput bool
	calls       int
}

func (m *MockShell) RunCommand(_ context.Context, command string, splitOutput bool) sandbox.ExecutionResult {
	m.calls++
	m.command = command
	m.splitOutput = splitOutput
	return m.result
}

func testConfig(secret string) *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeoutSec: 5},
		Workspace: config.WorkspaceConfig{Dir: "/workspace", SessionID: "sess-1"},
		Auth:      config.AuthConfig{SecretToken: secret},
		Sandbox:   config.SandboxConfig{CommandTimeoutSec: 30},
	}
}

func newTestServer(t *testing.T, secret string, session *MockSession, shell *MockShell) *Server {
	t.Helper()
	cfg := testConfig(secret)
	logger := zaptest.NewLogger(t)
	mcp := mcpserver.New(cfg, logger, session, shell)
	return New(cfg, logger, auth.NewGate(secret), session, shell, mcp)
}

func do(t *testing.T, handler http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	session := &MockSession{state: sandbox.StateReady, version: "3.12.1"}
	server := newTestServer(t, "s3cret", session, &MockShell{})

	t.Run("Healthz", func(t *testing.T) {
		rec := do(t, server.Handler(), http.MethodGet, "/healthz", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `"OK"`, rec.Body.String())
	})

	t.Run("HealthIsNotGated", func(t *testing.T) {
		rec := do(t, server.Handler(), http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var health HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "sess-1", health.SessionID)
		assert.Equal(t, "/workspace", health.WorkspaceDir)
		assert.Equal(t, "ready", health.Interpreter)
		assert.Equal(t, "3.12.1", health.InterpreterVersion)
		assert.Equal(t, serviceName, health.Service)
		assert.NotEmpty(t, health.GoVersion)
	})

	t.Run("HealthDoesNotStartInterpreter", func(t *testing.T) {
		do(t, server.Handler(), http.MethodGet, "/health", "", "")
		assert.Zero(t, session.calls)
	})
}

func TestRunIPythonCell(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		session := &MockSession{result: sandbox.ExecutionResult{
			Content: []sandbox.ContentItem{{Type: sandbox.ContentOutput, Text: "5\n", Description: sandbox.DescExecutionOutput}},
		}}
		server := newTestServer(t, "", session, &MockShell{})

		rec := do(t, server.Handler(), http.MethodPost, "/tools/run_ipython_cell", `{"code":"print(x)"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"content":[{"type":"output","text":"5\n","description":"Execution output"}],"is_error":false}`, rec.Body.String())
		assert.Equal(t, "print(x)", session.code)
		assert.False(t, session.splitOutput)
	})

	t.Run("ErrorsStay200", func(t *testing.T) {
		session := &MockSession{result: sandbox.ErrorResult("division by zero", sandbox.DescExecutionError)}
		server := newTestServer(t, "", session, &MockShell{})

		rec := do(t, server.Handler(), http.MethodPost, "/tools/run_ipython_cell", `{"code":"1/0","split_output":true}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"is_error":true`)
		assert.True(t, session.splitOutput)
	})

	t.Run("EmptyCodeIsAccepted", func(t *testing.T) {
		session := &MockSession{result: sandbox.NewResult()}
		server := newTestServer(t, "", session, &MockShell{})

		rec := do(t, server.Handler(), http.MethodPost, "/tools/run_ipython_cell", `{"code":""}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"content":[],"is_error":false}`, rec.Body.String())
		assert.Equal(t, 1, session.calls)
	})

	tests := []struct {
		name string
		body string
	}{
		{"MissingCode", `{"split_output":true}`},
		{"WrongType", `{"code":5}`},
		{"Malformed", `{"code":`},
		{"EmptyBody", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &MockSession{}
			server := newTestServer(t, "", session, &MockShell{})

			rec := do(t, server.Handler(), http.MethodPost, "/tools/run_ipython_cell", tt.body, "")
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Detail)
			assert.Zero(t, session.calls)
		})
	}
}

func TestRunShellCommand(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		shell := &MockShell{result: sandbox.ExecutionResult{
			Content: []sandbox.ContentItem{{Type: sandbox.ContentReturnCode, Text: "7", Description: sandbox.DescReturnCode}},
			IsError: true,
		}}
		server := newTestServer(t, "", &MockSession{}, shell)

		rec := do(t, server.Handler(), http.MethodPost, "/tools/run_shell_command", `{"command":"exit 7","split_output":true}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"content":[{"type":"return_code","text":"7","description":"Command return code"}],"is_error":true}`, rec.Body.String())
		assert.Equal(t, "exit 7", shell.command)
		assert.True(t, shell.splitOutput)
	})

	t.Run("MissingCommand", func(t *testing.T) {
		shell := &MockShell{}
		server := newTestServer(t, "", &MockSession{}, shell)

		rec := do(t, server.Handler(), http.MethodPost, "/tools/run_shell_command", `{}`, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "command")
		assert.Zero(t, shell.calls)
	})
}

func TestAccessGate(t *testing.T) {
	routes := []string{"/tools/run_ipython_cell", "/tools/run_shell_command"}
	bodies := map[string]string{
		"/tools/run_ipython_cell":  `{"code":"1"}`,
		"/tools/run_shell_command": `{"command":"true"}`,
	}

	for _, route := range routes {
		t.Run(route, func(t *testing.T) {
			session := &MockSession{result: sandbox.NewResult()}
			shell := &MockShell{result: sandbox.NewResult()}
			server := newTestServer(t, "s3cret", session, shell)

			rec := do(t, server.Handler(), http.MethodPost, route, bodies[route], "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"detail":"Authentication required"}`, rec.Body.String())

			rec = do(t, server.Handler(), http.MethodPost, route, bodies[route], "wrong")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"detail":"Invalid token"}`, rec.Body.String())

			assert.Zero(t, session.calls+shell.calls)

			rec = do(t, server.Handler(), http.MethodPost, route, bodies[route], "s3cret")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, 1, session.calls+shell.calls)
		})
	}

	t.Run("MCPIsGated", func(t *testing.T) {
		server := newTestServer(t, "s3cret", &MockSession{}, &MockShell{})
		rec := do(t, server.Handler(), http.MethodPost, "/mcp", `{}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("AuthCheckedBeforeBody", func(t *testing.T) {
		server := newTestServer(t, "s3cret", &MockSession{}, &MockShell{})
		rec := do(t, server.Handler(), http.MethodPost, "/tools/run_shell_command", `not json`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMCPDisabled(t *testing.T) {
	cfg := testConfig("")
	server := New(cfg, zaptest.NewLogger(t), auth.NewGate(""), &MockSession{}, &MockShell{}, nil)

	rec := do(t, server.Handler(), http.MethodPost, "/mcp", `{}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	server := newTestServer(t, "", &MockSession{}, &MockShell{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerLifecycle(t *testing.T) {
	server := newTestServer(t, "", &MockSession{}, &MockShell{})
	assert.Nil(t, server.Addr())

	require.NoError(t, server.Start(context.Background()))
	addr := server.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"OK"`, string(body))

	require.NoError(t, server.Shutdown(context.Background()))
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	_, err = client.Get(fmt.Sprintf("http://%s/healthz", addr))
	assert.Error(t, err)
}
