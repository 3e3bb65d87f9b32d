package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	existing       map[string]bool
	statErrors     map[string]error
	mkdirAllErrors map[string]error
	chdirErrors    map[string]error

	created []string
	cwd     string
}

func (m *MockFileSystem) MkdirAll(path string, _ os.FileMode) error {
	if err, exists := m.mkdirAllErrors[path]; exists {
		return err
	}
	m.created = append(m.created, path)
	return nil
}

func (m *MockFileSystem) Chdir(dir string) error {
	if err, exists := m.chdirErrors[dir]; exists {
		return err
	}
	m.cwd = dir
	return nil
}

func (m *MockFileSystem) FileExists(path string) (bool, error) {
	if err, exists := m.statErrors[path]; exists {
		return false, err
	}
	return m.existing[path], nil
}

func TestPrepareWorkspace(t *testing.T) {
	t.Run("ExistingDirectory", func(t *testing.T) {
		fs := &MockFileSystem{existing: map[string]bool{"/workspace": true}}
		require.NoError(t, PrepareWorkspace(fs, "/workspace"))
		assert.Empty(t, fs.created)
		assert.Equal(t, "/workspace", fs.cwd)
	})

	t.Run("MissingDirectoryIsCreated", func(t *testing.T) {
		fs := &MockFileSystem{}
		require.NoError(t, PrepareWorkspace(fs, "/data/ws"))
		assert.Equal(t, []string{"/data/ws"}, fs.created)
		assert.Equal(t, "/data/ws", fs.cwd)
	})

	t.Run("StatError", func(t *testing.T) {
		fs := &MockFileSystem{statErrors: map[string]error{"/workspace": os.ErrPermission}}
		err := PrepareWorkspace(fs, "/workspace")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrPermission)
		assert.Contains(t, err.Error(), "failed to stat workspace")
	})

	t.Run("MkdirError", func(t *testing.T) {
		fs := &MockFileSystem{mkdirAllErrors: map[string]error{"/workspace": errors.New("read-only file system")}}
		err := PrepareWorkspace(fs, "/workspace")
		assert.ErrorContains(t, err, "failed to create workspace")
		assert.Empty(t, fs.cwd)
	})

	t.Run("ChdirError", func(t *testing.T) {
		fs := &MockFileSystem{
			existing:    map[string]bool{"/workspace": true},
			chdirErrors: map[string]error{"/workspace": errors.New("not a directory")},
		}
		err := PrepareWorkspace(fs, "/workspace")
		assert.ErrorContains(t, err, "failed to enter workspace")
	})
}

func TestRealFileSystem(t *testing.T) {
	fs := RealFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")

	exists, err := fs.FileExists(dir)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.MkdirAll(dir, DirPermission))
	exists, err = fs.FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRealCommandRunner(t *testing.T) {
	requireShell(t)
	runner := RealCommandRunner{WaitDelay: DefaultWaitDelay}
	ctx := context.Background()

	t.Run("NoArgs", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(ctx, "", nil)
		assert.Error(t, err)
	})

	t.Run("CapturesStreamsAndExitCode", func(t *testing.T) {
		stdout, stderr, code, err := runner.RunCommand(ctx, t.TempDir(), []string{"/bin/sh", "-c", "echo o; echo e >&2; exit 3"})
		require.NoError(t, err)
		assert.Equal(t, "o\n", stdout)
		assert.Equal(t, "e\n", stderr)
		assert.Equal(t, 3, code)
	})

	t.Run("SignalReportsNegatedNumber", func(t *testing.T) {
		_, _, code, err := runner.RunCommand(ctx, t.TempDir(), []string{"/bin/sh", "-c", "echo before; kill -TERM $$"})
		require.NoError(t, err)
		assert.Equal(t, -15, code)
	})

	t.Run("DeadlineKillReturnsContextError", func(t *testing.T) {
		deadline, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		stdout, _, code, err := runner.RunCommand(deadline, t.TempDir(), []string{"/bin/sh", "-c", "echo started; sleep 5"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, "started\n", stdout)
		assert.Equal(t, -9, code)
	})

	t.Run("ExitBeforeDeadlineIsNotKilled", func(t *testing.T) {
		deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		stdout, _, code, err := runner.RunCommand(deadline, t.TempDir(), []string{"/bin/sh", "-c", "echo quick"})
		require.NoError(t, err)
		assert.Equal(t, "quick\n", stdout)
		assert.Equal(t, 0, code)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(ctx, t.TempDir(), []string{"/nonexistent/binary"})
		assert.Error(t, err)
	})
}
