package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHostSandbox(t *testing.T) {
	cfg := DefaultConfig()
	sandbox, err := NewHostSandbox(cfg)

	require.NoError(t, err)
	assert.NotNil(t, sandbox)
	assert.Equal(t, cfg, sandbox.GetConfig())
}

func TestNewHostSandbox_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0

	sandbox, err := NewHostSandbox(cfg)

	assert.Error(t, err)
	assert.Nil(t, sandbox)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestHostSandbox_Execute_SimpleCommand(t *testing.T) {
	sandbox, err := NewHostSandbox(DefaultConfig())
	require.NoError(t, err)

	result, err := sandbox.Execute(context.Background(), ExecuteRequest{
		Command: "echo",
		Args:    []string{"hello", "world"},
		Timeout: 5 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, string(result.Stdout), "hello world")
	assert.Empty(t, result.Stderr)
	assert.False(t, result.TimedOut)
}

func TestHostSandbox_Execute_SeparatesStreams(t *testing.T) {
	sandbox, err := NewHostSandbox(DefaultConfig())
	require.NoError(t, err)

	result, err := sandbox.Execute(context.Background(), ExecuteRequest{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "out\n", string(result.Stdout))
	assert.Equal(t, "err\n", string(result.Stderr))
}

func TestHostSandbox_Execute_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0644))

	sandbox, err := NewHostSandbox(DefaultConfig())
	require.NoError(t, err)

	result, err := sandbox.Execute(context.Background(), ExecuteRequest{
		Command:    "ls",
		WorkingDir: dir,
	})

	require.NoError(t, err)
	assert.Contains(t, string(result.Stdout), "marker.txt")
}

func TestHostSandbox_Execute_Timeout(t *testing.T) {
	sandbox, err := NewHostSandbox(DefaultConfig())
	require.NoError(t, err)

	t.Run("timeout takes precedence over partial output", func(t *testing.T) {
		start := time.Now()
		result, err := sandbox.Execute(context.Background(), ExecuteRequest{
			Command: "sh",
			Args:    []string{"-c", "echo started; sleep 10"},
			Timeout: 200 * time.Millisecond,
		})

		assert.ErrorIs(t, err, ErrExecutionTimeout)
		assert.True(t, result.TimedOut)
		assert.Equal(t, -1, result.ExitCode)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("kills background children of the process", func(t *testing.T) {
		start := time.Now()
		_, err := sandbox.Execute(context.Background(), ExecuteRequest{
			Command: "sh",
			Args:    []string{"-c", "sleep 10 & sleep 10"},
			Timeout: 200 * time.Millisecond,
		})

		assert.ErrorIs(t, err, ErrExecutionTimeout)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestHostSandbox_Execute_Errors(t *testing.T) {
	sandbox, err := NewHostSandbox(DefaultConfig())
	require.NoError(t, err)

	t.Run("empty command", func(t *testing.T) {
		_, err := sandbox.Execute(context.Background(), ExecuteRequest{})
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})

	t.Run("missing executable", func(t *testing.T) {
		_, err := sandbox.Execute(context.Background(), ExecuteRequest{Command: "definitely-not-a-real-binary-xyz"})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrExecutionTimeout)
	})

	t.Run("cancelled parent context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := sandbox.Execute(ctx, ExecuteRequest{Command: "sleep", Args: []string{"1"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHostSandbox_Environment(t *testing.T) {
	t.Setenv("CLAII_TEST_API_KEY", "secret-value")
	t.Setenv("CLAII_TEST_VISIBLE", "visible-value")

	cfg := DefaultConfig()
	cfg.Env = map[string]string{"FROM_CONFIG": "cfg"}
	sandbox, err := NewHostSandbox(cfg)
	require.NoError(t, err)

	result, err := sandbox.Execute(context.Background(), ExecuteRequest{
		Command: "env",
		Env:     map[string]string{"FROM_REQUEST": "req"},
	})
	require.NoError(t, err)

	out := string(result.Stdout)
	assert.Contains(t, out, "CLAII_TEST_VISIBLE=visible-value")
	assert.Contains(t, out, "FROM_CONFIG=cfg")
	assert.Contains(t, out, "FROM_REQUEST=req")
	assert.NotContains(t, out, "secret-value")
}
