package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"
)

// CodeExecutor runs code cells in the persistent interpreter session
type CodeExecutor interface {
	RunCode(ctx context.Context, code string, splitOutput bool) ExecutionResult
}

// ShellExecutor runs one-shot shell commands
type ShellExecutor interface {
	RunCommand(ctx context.Context, command string, splitOutput bool) ExecutionResult
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands. The
// child runs in its own process group, and the whole group is killed when ctx
// is done.
type RealCommandRunner struct {
	// WaitDelay bounds how long output pipes held open by background
	// processes may delay completion once the command itself has exited
	WaitDelay time.Duration
}

// RunCommand executes the given command with arguments in dir. A non-zero
// exit is reported through exitCode, not err; a process terminated by a
// signal reports the negated signal number. err is set when the command could
// not be run, or to ctx's error when the command was killed because ctx ended.
func (r RealCommandRunner) RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Running caller commands is intended functionality
	cmd.Dir = dir
	setProcessGroup(cmd)

	var killed atomic.Bool
	cmd.Cancel = func() error {
		err := killProcessGroup(cmd)
		if err == nil {
			killed.Store(true)
		}
		return err
	}
	cmd.WaitDelay = r.WaitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	if cmd.ProcessState == nil {
		return stdoutBuf.String(), stderrBuf.String(), 0, err
	}

	exitCode, signaled := exitStatus(cmd.ProcessState)
	if killed.Load() && signaled {
		return stdoutBuf.String(), stderrBuf.String(), exitCode, ctx.Err()
	}

	var exitError *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitError):
		return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
	case errors.Is(err, exec.ErrWaitDelay), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The command exited by itself; a background child kept its pipes
		// open or the deadline fired after the exit.
		return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
	default:
		return stdoutBuf.String(), stderrBuf.String(), exitCode, err
	}
}

// FileSystem defines an interface for the file system operations used to
// provision the workspace
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	Chdir(dir string) error
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) Chdir(dir string) error {
	return os.Chdir(dir)
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission constants
const (
	DirPermission = 0755
)

// PrepareWorkspace creates dir (including parents) when it is missing and
// makes it the process working directory.
func PrepareWorkspace(fs FileSystem, dir string) error {
	exists, err := fs.FileExists(dir)
	if err != nil {
		return fmt.Errorf("failed to stat workspace: %w", err)
	}
	if !exists {
		if err := fs.MkdirAll(dir, DirPermission); err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}
	}
	if err := fs.Chdir(dir); err != nil {
		return fmt.Errorf("failed to enter workspace: %w", err)
	}
	return nil
}
