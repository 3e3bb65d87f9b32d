package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/isdmx/execd/version"
)

// serviceName identifies the daemon in health reports
const serviceName = "sandbox-server"

// CodeRequest is the body of POST /tools/run_ipython_cell
type CodeRequest struct {
	Code        *string `json:"code"`
	SplitOutput bool    `json:"split_output"`
}

// CommandRequest is the body of POST /tools/run_shell_command
type CommandRequest struct {
	Command     *string `json:"command"`
	SplitOutput bool    `json:"split_output"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status             string `json:"status"`
	SessionID          string `json:"session_id"`
	WorkspaceDir       string `json:"workspace_dir"`
	Interpreter        string `json:"interpreter"`
	InterpreterVersion string `json:"interpreter_version"`
	GoVersion          string `json:"go_version"`
	Version            string `json:"version"`
	Service            string `json:"service"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, "OK")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "healthy",
		SessionID:          s.config.Workspace.SessionID,
		WorkspaceDir:       s.config.Workspace.Dir,
		Interpreter:        s.session.State().String(),
		InterpreterVersion: s.session.Version(),
		GoVersion:          runtime.Version(),
		Version:            version.Version,
		Service:            serviceName,
	})
}

func (s *Server) handleRunIPythonCell(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		s.logger.Warn("invalid code request", zap.Error(err))
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Code == nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("code: %v", errMissingField))
		return
	}

	// A disconnecting client does not cancel the evaluation.
	result := s.session.RunCode(context.WithoutCancel(r.Context()), *req.Code, req.SplitOutput)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRunShellCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeRequest(w, r, &req); err != nil {
		s.logger.Warn("invalid command request", zap.Error(err))
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Command == nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("command: %v", errMissingField))
		return
	}

	// The runner stops waiting for a free slot when the client goes away,
	// but a started command only ends by itself or by its deadline.
	result := s.shell.RunCommand(r.Context(), *req.Command, req.SplitOutput)
	s.writeJSON(w, http.StatusOK, result)
}
