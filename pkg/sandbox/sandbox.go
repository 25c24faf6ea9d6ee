package sandbox

import (
	"context"
	"time"
)

// Config defines host execution settings
type Config struct {
	// Timeout limits wall-clock execution time when a request sets none
	Timeout time.Duration `json:"timeout"`

	// WaitDelay bounds how long to wait for output pipes after the process is killed
	WaitDelay time.Duration `json:"wait_delay"`

	// Env holds extra environment variables for every command
	Env map[string]string `json:"env"`
}

// ExecuteRequest represents a sandbox execution request
type ExecuteRequest struct {
	// Command is the command to execute
	Command string `json:"command"`

	// Args are the command arguments
	Args []string `json:"args"`

	// Env are environment variables
	Env map[string]string `json:"env"`

	// WorkingDir is the working directory
	WorkingDir string `json:"working_dir"`

	// Stdin is the standard input
	Stdin []byte `json:"stdin"`

	// Timeout is the execution timeout
	Timeout time.Duration `json:"timeout"`
}

// ExecuteResult represents a sandbox execution result
type ExecuteResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Sandbox runs commands on behalf of tools
type Sandbox interface {
	// Execute runs a command and captures its output. A timeout yields
	// ErrExecutionTimeout.
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// DefaultConfig returns a default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		WaitDelay: 2 * time.Second,
	}
}

// ValidateConfig validates a sandbox configuration
func ValidateConfig(cfg Config) error {
	if cfg.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.WaitDelay < 0 {
		return ErrInvalidTimeout
	}
	return nil
}
