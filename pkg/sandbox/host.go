package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// sensitiveEnvSuffixes mark variables that never reach child processes.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// HostSandbox runs commands directly on the host with a hard deadline.
// On expiry the whole process group is killed.
type HostSandbox struct {
	config Config
}

// NewHostSandbox creates a new host-based sandbox
func NewHostSandbox(config Config) (*HostSandbox, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &HostSandbox{config: config}, nil
}

// GetConfig returns the sandbox configuration
func (h *HostSandbox) GetConfig() Config {
	return h.config
}

// Execute runs a command in the sandbox
func (h *HostSandbox) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return ExecuteResult{}, ErrEmptyCommand
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = h.config.Timeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, req.Command, req.Args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	cmd.Env = h.buildEnvironment(req.Env)
	setProcessGroup(cmd)
	cmd.WaitDelay = h.config.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(req.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(req.Stdin)
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	// Timeout wins over whatever partial output or exit status we saw.
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		log.Debug().
			Str("command", req.Command).
			Dur("timeout", timeout).
			Msg("Command timed out")
		return ExecuteResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: -1,
			Duration: duration,
			TimedOut: true,
		}, ErrExecutionTimeout
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ExecuteResult{}, ctxErr
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return ExecuteResult{}, err
		}
		exitCode = exitErr.ExitCode()
	}

	log.Debug().
		Str("command", req.Command).
		Strs("args", req.Args).
		Int("exit_code", exitCode).
		Dur("duration", duration).
		Msg("Command executed in sandbox")

	return ExecuteResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// buildEnvironment inherits the host environment minus credentials, then
// layers configured and per-request variables on top.
func (h *HostSandbox) buildEnvironment(env map[string]string) []string {
	var result []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || isSensitiveEnvVar(name) {
			continue
		}
		result = append(result, kv)
	}
	for key, value := range h.config.Env {
		result = append(result, key+"="+value)
	}
	for key, value := range env {
		result = append(result, key+"="+value)
	}
	return result
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}
