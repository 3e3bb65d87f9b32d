package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// SessionState is the lifecycle state of the interpreter session
type SessionState int32

// Session states
const (
	StateUninitialized SessionState = iota
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// Session owns the single interpreter of the process. The interpreter is
// created on the first RunCode call and is never recreated; every caller
// shares its variable bindings and working directory. Evaluations are
// serialized so that captured output never interleaves.
type Session struct {
	logger  *zap.Logger
	workdir string
	factory InterpreterFactory

	once    sync.Once
	interp  Interpreter
	initErr error
	version string
	state   atomic.Int32

	mu sync.Mutex
}

// NewSession creates an uninitialized session bound to workdir
func NewSession(logger *zap.Logger, workdir string, factory InterpreterFactory) *Session {
	return &Session{
		logger:  logger,
		workdir: workdir,
		factory: factory,
	}
}

// Workdir returns the directory the interpreter is bound to
func (s *Session) Workdir() string {
	return s.workdir
}

// State reports the current lifecycle state
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Version returns the interpreter version once the session is ready
func (s *Session) Version() string {
	if s.State() == StateUninitialized {
		return ""
	}
	return s.version
}

// interpreter returns the session interpreter, constructing it exactly once
func (s *Session) interpreter(ctx context.Context) (Interpreter, error) {
	s.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				s.interp, s.initErr = nil, fmt.Errorf("interpreter construction panicked: %v", r)
				s.state.Store(int32(StateFailed))
			}
		}()
		s.interp, s.initErr = s.factory(context.WithoutCancel(ctx), s.workdir)
		if s.initErr != nil {
			s.state.Store(int32(StateFailed))
			s.logger.Error("failed to start interpreter", zap.String("workdir", s.workdir), zap.Error(s.initErr))
			return
		}
		s.version = s.interp.Version()
		s.state.Store(int32(StateReady))
	})
	return s.interp, s.initErr
}

// RunCode evaluates code against the persistent interpreter state. It never
// returns an error: every failure is reported inside the result.
func (s *Session) RunCode(ctx context.Context, code string, splitOutput bool) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while executing python code", zap.Any("panic", r))
			result = EngineFailure("Error executing Python code", fmt.Errorf("panic: %v", r), DescPythonFailure)
		}
	}()

	interp, err := s.interpreter(ctx)
	if err != nil {
		return EngineFailure("Error executing Python code", err, DescPythonFailure)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sink Capture
	cellErr, err := interp.Eval(ctx, code, &sink)
	if err != nil {
		if errors.Is(err, ErrInterpreterUnavailable) {
			s.state.Store(int32(StateFailed))
		}
		s.logger.Error("python execution failed", zap.Error(err))
		return EngineFailure("Error executing Python code", err, DescPythonFailure)
	}

	result = Shape(sink.Stdout.String(), sink.Stderr.String(), splitOutput, DescExecutionOutput)
	if cellErr != nil {
		result.IsError = true
		if text := cellErr.Text(); text != "" {
			result.Append(ContentError, text, DescExecutionError)
		}
	}

	s.logger.Info("python cell executed",
		zap.Bool("split_output", splitOutput),
		zap.Bool("is_error", result.IsError),
		zap.Int("stdout_len", sink.Stdout.Len()),
		zap.Int("stderr_len", sink.Stderr.Len()))

	return result
}

// Close stops the interpreter if it was started
func (s *Session) Close() error {
	// Prevent a late first call from starting an interpreter after shutdown.
	s.once.Do(func() {
		s.initErr = errors.New("session closed")
		s.state.Store(int32(StateFailed))
	})
	if s.interp == nil {
		return nil
	}
	s.state.Store(int32(StateFailed))
	return s.interp.Close()
}
