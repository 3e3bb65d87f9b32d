package sandbox

import (
	"go.uber.org/zap"

	"github.com/isdmx/execd/config"
)

// NewSessionFromConfig creates the interpreter session bound to the configured
// workspace, backed by a python kernel
func NewSessionFromConfig(logger *zap.Logger, cfg *config.Config) *Session {
	kernelLogger := logger.Named("kernel")
	factory := NewPythonKernelFactory(kernelLogger, cfg.Sandbox.PythonBin,
		WithKernelBackend(cfg.Sandbox.PythonBackend))
	return NewSession(logger.Named("session"), cfg.Workspace.Dir, factory)
}

// NewShellRunnerFromConfig creates the shell runner for the configured workspace
func NewShellRunnerFromConfig(logger *zap.Logger, cfg *config.Config) *ShellRunner {
	return NewShellRunner(logger.Named("shell"), cfg.Workspace.Dir,
		WithShell(cfg.Sandbox.Shell),
		WithCommandTimeout(cfg.GetCommandTimeout()),
		WithMaxConcurrentCommands(cfg.Sandbox.MaxConcurrentCommands),
	)
}
