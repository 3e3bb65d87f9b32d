package sandbox

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/execd/logger"
)

//go:embed kernel.py
var kernelSource string

// kernelRequest is one cell sent to the kernel
type kernelRequest struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type kernelError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// kernelResponse is the kernel's reply to a cell, or its ready banner
type kernelResponse struct {
	ID              string       `json:"id"`
	Ready           bool         `json:"ready"`
	Version         string       `json:"version"`
	Backend         string       `json:"backend"`
	EngineError     string       `json:"engine_error"`
	Stdout          string       `json:"stdout"`
	Stderr          string       `json:"stderr"`
	ErrorBeforeExec *kernelError `json:"error_before_exec"`
	ErrorInExec     *kernelError `json:"error_in_exec"`
}

// PythonKernel is an Interpreter backed by a long-lived python3 process. Cells
// travel over dedicated pipes (fd 3 for requests, fd 4 for replies) so that
// anything the kernel process writes to its own stdout/stderr cannot corrupt
// the protocol; those raw streams are forwarded to the log instead.
type PythonKernel struct {
	logger  *zap.Logger
	cmd     *exec.Cmd
	version string
	backend string

	requests  io.WriteCloser
	encoder   *json.Encoder
	responses io.ReadCloser
	decoder   *json.Decoder
	streams   []*logger.LineWriter

	mu     sync.Mutex
	broken error

	exited  chan struct{}
	waitErr error
}

// KernelOption defines a functional option for PythonKernel
type KernelOption func(*kernelOptions)

type kernelOptions struct {
	env []string
}

// Kernel backends. BackendAuto prefers IPython and falls back to the plain
// interpreter when IPython cannot be imported.
const (
	BackendAuto    = "auto"
	BackendIPython = "ipython"
	BackendPython  = "python"
)

// WithKernelEnv appends environment variables to the kernel process
func WithKernelEnv(env ...string) KernelOption {
	return func(o *kernelOptions) {
		o.env = append(o.env, env...)
	}
}

// WithKernelBackend selects how cells are evaluated
func WithKernelBackend(backend string) KernelOption {
	return WithKernelEnv("EXECD_KERNEL_BACKEND=" + backend)
}

// NewPythonKernelFactory returns an InterpreterFactory starting pythonBin
func NewPythonKernelFactory(log *zap.Logger, pythonBin string, opts ...KernelOption) InterpreterFactory {
	return func(ctx context.Context, workdir string) (Interpreter, error) {
		return StartPythonKernel(ctx, log, pythonBin, workdir, opts...)
	}
}

// StartPythonKernel launches the kernel process in workdir and waits for its
// ready banner. The process outlives ctx; it is stopped by Close.
func StartPythonKernel(ctx context.Context, log *zap.Logger, pythonBin, workdir string, opts ...KernelOption) (*PythonKernel, error) {
	var o kernelOptions
	for _, opt := range opts {
		opt(&o)
	}

	reqRead, reqWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create request pipe: %w", err)
	}
	respRead, respWrite, err := os.Pipe()
	if err != nil {
		reqRead.Close()
		reqWrite.Close()
		return nil, fmt.Errorf("failed to create response pipe: %w", err)
	}

	stdout := logger.NewLineWriter(log, zapcore.DebugLevel, "kernel_stdout")
	stderr := logger.NewLineWriter(log, zapcore.DebugLevel, "kernel_stderr")

	//nolint:gosec // Running the interpreter is intended functionality
	cmd := exec.Command(pythonBin, "-u", "-c", kernelSource)
	cmd.Dir = workdir
	cmd.Env = append(append(os.Environ(), "PYTHONUNBUFFERED=1"), o.env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{reqRead, respWrite}
	// Detached grandchildren may inherit the output pipes; do not wait on them.
	cmd.WaitDelay = DefaultWaitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		reqRead.Close()
		reqWrite.Close()
		respRead.Close()
		respWrite.Close()
		return nil, fmt.Errorf("failed to start python kernel: %w", err)
	}

	// The child holds its own copies of these ends.
	reqRead.Close()
	respWrite.Close()

	k := &PythonKernel{
		logger:    log,
		cmd:       cmd,
		requests:  reqWrite,
		encoder:   json.NewEncoder(reqWrite),
		responses: respRead,
		decoder:   json.NewDecoder(respRead),
		streams:   []*logger.LineWriter{stdout, stderr},
		exited:    make(chan struct{}),
	}
	go k.wait()

	ready := make(chan error, 1)
	go func() {
		var banner kernelResponse
		if err := k.decoder.Decode(&banner); err != nil {
			ready <- k.exitError(fmt.Errorf("failed to read kernel banner: %w", err))
			return
		}
		if !banner.Ready {
			ready <- fmt.Errorf("%w: unexpected kernel banner", ErrInterpreterUnavailable)
			return
		}
		k.version = banner.Version
		k.backend = banner.Backend
		ready <- nil
	}()

	select {
	case err := <-ready:
		if err != nil {
			_ = k.Close()
			return nil, err
		}
	case <-ctx.Done():
		_ = k.Close()
		return nil, fmt.Errorf("failed to start python kernel: %w", ctx.Err())
	}

	log.Info("python kernel started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("workdir", workdir),
		zap.String("version", k.version),
		zap.String("backend", k.backend))

	return k, nil
}

func (k *PythonKernel) wait() {
	k.waitErr = k.cmd.Wait()
	for _, s := range k.streams {
		s.Flush()
	}
	close(k.exited)
}

// exitError enriches a pipe failure with the kernel's exit status when the
// process is already gone.
func (k *PythonKernel) exitError(err error) error {
	select {
	case <-k.exited:
		return fmt.Errorf("%w: kernel process exited (%v): %w", ErrInterpreterUnavailable, k.waitErr, err)
	default:
		return fmt.Errorf("%w: %w", ErrInterpreterUnavailable, err)
	}
}

// Eval sends one cell to the kernel and waits for its reply. There is no
// deadline: a cell that never finishes blocks the kernel indefinitely.
func (k *PythonKernel) Eval(_ context.Context, code string, sink *Capture) (*CellError, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.broken != nil {
		return nil, k.broken
	}

	id := uuid.NewString()
	if err := k.encoder.Encode(kernelRequest{ID: id, Code: code}); err != nil {
		k.broken = k.exitError(fmt.Errorf("failed to send cell: %w", err))
		return nil, k.broken
	}

	var resp kernelResponse
	if err := k.decoder.Decode(&resp); err != nil {
		k.broken = k.exitError(fmt.Errorf("failed to read cell reply: %w", err))
		return nil, k.broken
	}
	if resp.ID != id {
		k.broken = fmt.Errorf("%w: reply id %q does not match request %q", ErrInterpreterUnavailable, resp.ID, id)
		return nil, k.broken
	}

	if resp.EngineError != "" {
		// The kernel survived; only this cell was lost.
		return nil, fmt.Errorf("%w: %s", ErrKernelFault, resp.EngineError)
	}

	sink.Stdout.WriteString(resp.Stdout)
	sink.Stderr.WriteString(resp.Stderr)

	switch {
	case resp.ErrorBeforeExec != nil:
		return &CellError{BeforeExec: true, Type: resp.ErrorBeforeExec.Type, Message: resp.ErrorBeforeExec.Message}, nil
	case resp.ErrorInExec != nil:
		return &CellError{Type: resp.ErrorInExec.Type, Message: resp.ErrorInExec.Message}, nil
	default:
		return nil, nil
	}
}

// Version returns the kernel's sys.version
func (k *PythonKernel) Version() string {
	return k.version
}

// Backend names the evaluation backend the kernel selected
func (k *PythonKernel) Backend() string {
	return k.backend
}

// Pid returns the kernel process id
func (k *PythonKernel) Pid() int {
	return k.cmd.Process.Pid
}

// Close terminates the kernel process group and releases the pipes
func (k *PythonKernel) Close() error {
	closeErr := k.requests.Close()
	select {
	case <-k.exited:
	default:
		if err := killProcessGroup(k.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to kill kernel: %w", err))
		}
		<-k.exited
	}
	if err := k.responses.Close(); err != nil {
		closeErr = errors.Join(closeErr, err)
	}
	return closeErr
}
