package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Defaults for the shell runner
const (
	DefaultShell                 = "/bin/sh"
	DefaultCommandTimeout        = 30 * time.Second
	DefaultMaxConcurrentCommands = 16
	DefaultWaitDelay             = time.Second
)

// ShellRunner executes shell command strings in the workspace. The command is
// interpreted by a shell, so pipes, redirections and globs work; the trust
// boundary is the container the daemon runs in. Each call is independent.
type ShellRunner struct {
	logger    *zap.Logger
	workdir   string
	shell     string
	timeout   time.Duration
	slots     *semaphore.Weighted
	cmdRunner CommandRunner
}

// ShellRunnerOption defines a functional option for ShellRunner
type ShellRunnerOption func(*ShellRunner)

// WithShell sets the shell used to interpret commands
func WithShell(shell string) ShellRunnerOption {
	return func(s *ShellRunner) {
		s.shell = shell
	}
}

// WithCommandTimeout sets the wall-clock deadline of a command
func WithCommandTimeout(timeout time.Duration) ShellRunnerOption {
	return func(s *ShellRunner) {
		s.timeout = timeout
	}
}

// WithMaxConcurrentCommands bounds how many commands run at once
func WithMaxConcurrentCommands(n int) ShellRunnerOption {
	return func(s *ShellRunner) {
		s.slots = semaphore.NewWeighted(int64(n))
	}
}

// WithShellCommandRunner sets the CommandRunner for ShellRunner
func WithShellCommandRunner(cmdRunner CommandRunner) ShellRunnerOption {
	return func(s *ShellRunner) {
		s.cmdRunner = cmdRunner
	}
}

// NewShellRunner creates a new ShellRunner with default implementations and optional overrides
func NewShellRunner(logger *zap.Logger, workdir string, opts ...ShellRunnerOption) *ShellRunner {
	runner := &ShellRunner{
		logger:    logger,
		workdir:   workdir,
		shell:     DefaultShell,
		timeout:   DefaultCommandTimeout,
		slots:     semaphore.NewWeighted(DefaultMaxConcurrentCommands),
		cmdRunner: RealCommandRunner{WaitDelay: DefaultWaitDelay},
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Timeout returns the command deadline
func (s *ShellRunner) Timeout() time.Duration {
	return s.timeout
}

// RunCommand executes command and reports its output and exit code. It never
// returns an error: launch failures, timeouts and non-zero exits are all
// reported inside the result.
func (s *ShellRunner) RunCommand(ctx context.Context, command string, splitOutput bool) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while executing shell command", zap.Any("panic", r))
			result = EngineFailure("Error executing shell command", fmt.Errorf("panic: %v", r), DescShellFailure)
		}
	}()

	// Waiting for a slot ends with the caller; the command itself is only
	// bounded by its own deadline.
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return EngineFailure("Error executing shell command", fmt.Errorf("failed to acquire command slot: %w", err), DescShellFailure)
	}
	defer s.slots.Release(1)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := s.cmdRunner.RunCommand(runCtx, s.workdir, []string{s.shell, "-c", command})

	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("shell command timed out",
			zap.Duration("timeout", s.timeout),
			zap.Int("stdout_len", len(stdout)),
			zap.Int("stderr_len", len(stderr)))
		return TimeoutResult(s.timeout)
	}

	if err != nil {
		s.logger.Error("failed to execute shell command", zap.Error(err))
		return EngineFailure("Error executing shell command", err, DescShellFailure)
	}

	result = Shape(stdout, stderr, splitOutput, DescCommandOutput)
	result.Append(ContentReturnCode, strconv.Itoa(exitCode), DescReturnCode)
	result.IsError = exitCode != 0

	s.logger.Info("shell command completed",
		zap.Int("exit_code", exitCode),
		zap.Bool("split_output", splitOutput),
		zap.Duration("duration", time.Since(start)),
		zap.Int("stdout_len", len(stdout)),
		zap.Int("stderr_len", len(stderr)))

	return result
}
