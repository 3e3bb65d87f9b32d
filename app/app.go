// Package app assembles the daemon with fx.
//
// Core provides the execution engine and provisions the workspace; HTTP and
// Stdio select the transport. New builds a complete application from a
// configuration file.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/execd/auth"
	"github.com/isdmx/execd/config"
	"github.com/isdmx/execd/httpserver"
	"github.com/isdmx/execd/logger"
	"github.com/isdmx/execd/mcpserver"
	"github.com/isdmx/execd/sandbox"
)

// Core provides the access gate, the interpreter session and the shell
// runner, and manages the workspace and session lifecycle. It expects a
// *config.Config and a *zap.Logger in the graph.
var Core = fx.Options(
	fx.Provide(
		newGate,
		sandbox.NewSessionFromConfig,
		sandbox.NewShellRunnerFromConfig,
	),
	fx.Invoke(registerSession),
)

// HTTP serves the tool routes (and /mcp when enabled) over HTTP
var HTTP = fx.Options(
	fx.Provide(
		newOptionalMCPServer,
		newHTTPServer,
	),
	fx.Invoke(registerHTTPServer),
)

// Stdio serves the MCP tools over stdin/stdout and stops the application
// when the peer closes the stream
var Stdio = fx.Options(
	fx.Provide(newMCPServer),
	fx.Invoke(registerStdio),
)

// New builds the application from configFile (or the default search paths
// when empty) with the given transport
func New(configFile string, transport fx.Option) *fx.App {
	return fx.New(
		fx.Provide(
			func() (*config.Config, error) {
				return config.Load(configFile)
			},
			logger.NewFromConfig,
		),
		Core,
		transport,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

func newGate(cfg *config.Config) *auth.Gate {
	return auth.NewGate(cfg.Auth.SecretToken)
}

func newMCPServer(cfg *config.Config, log *zap.Logger, session *sandbox.Session, shell *sandbox.ShellRunner) *mcpserver.MCPServer {
	return mcpserver.New(cfg, log, session, shell)
}

func newOptionalMCPServer(cfg *config.Config, log *zap.Logger, session *sandbox.Session, shell *sandbox.ShellRunner) *mcpserver.MCPServer {
	if !cfg.Server.EnableMCP {
		return nil
	}
	return newMCPServer(cfg, log, session, shell)
}

func newHTTPServer(cfg *config.Config, log *zap.Logger, gate *auth.Gate, session *sandbox.Session, shell *sandbox.ShellRunner, mcp *mcpserver.MCPServer) *httpserver.Server {
	return httpserver.New(cfg, log, gate, session, shell, mcp)
}

// registerSession creates and enters the workspace before anything is
// served, and stops the interpreter on shutdown
func registerSession(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, session *sandbox.Session) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := sandbox.PrepareWorkspace(sandbox.RealFileSystem{}, cfg.Workspace.Dir); err != nil {
				return err
			}
			log.Info("sandbox server started",
				zap.String("session_id", cfg.Workspace.SessionID),
				zap.String("workspace_dir", cfg.Workspace.Dir),
				zap.Bool("auth_enabled", cfg.AuthEnabled()),
				zap.Int("command_timeout_sec", cfg.Sandbox.CommandTimeoutSec),
				zap.Int("max_concurrent_commands", cfg.Sandbox.MaxConcurrentCommands),
				zap.String("python_bin", cfg.Sandbox.PythonBin))
			return nil
		},
		OnStop: func(context.Context) error {
			err := session.Close()
			_ = log.Sync()
			return err
		},
	})
}

func registerHTTPServer(lc fx.Lifecycle, srv *httpserver.Server) {
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Shutdown,
	})
}

func registerStdio(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.Logger, srv *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ServeStdio(); err != nil {
					log.Error("stdio server stopped", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}
