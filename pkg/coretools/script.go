package coretools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agencyswarm/claii/pkg/sandbox"
)

// RunScript executes a script inside root with the configured interpreter and
// reports its output. Validation runs in a fixed order: containment, then
// existence, then extension. Nothing is executed unless all three pass.
func (t *Toolset) RunScript(ctx context.Context, root, filePath string, args []string) (string, error) {
	target, err := sandbox.Resolve(root, filePath)
	if err != nil {
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return "", toolErrorf(sandbox.ErrOutsideRoot, "Cannot execute %q as it is outside the permitted working directory", filePath)
		}
		return "", err
	}
	if t.hidden(target) {
		return "", toolErrorf(ErrReserved, "Cannot execute %q as it is reserved", filePath)
	}
	if _, err := os.Stat(target); err != nil {
		return "", toolErrorf(sandbox.ErrNotFound, "File %q not found.", filePath)
	}
	if filepath.Ext(target) != t.opts.ScriptExtension {
		return "", toolErrorf(sandbox.ErrNotScript, "%q is not a %s file.", filePath, t.opts.ScriptLabel)
	}

	canonRoot, err := sandbox.CanonicalRoot(root)
	if err != nil {
		return "", err
	}

	res, err := t.sandbox.Execute(ctx, sandbox.ExecuteRequest{
		Command:    t.opts.Interpreter,
		Args:       append([]string{target}, args...),
		WorkingDir: canonRoot,
		Timeout:    t.opts.ScriptTimeout,
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrExecutionTimeout) {
			secs := strconv.FormatFloat(t.opts.ScriptTimeout.Seconds(), 'f', -1, 64)
			return "", toolErrorf(sandbox.ErrExecutionTimeout, "executing %s file: timed out after %s seconds", t.opts.ScriptLabel, secs)
		}
		return "", &Error{Kind: err, Msg: fmt.Sprintf("executing %s file: %v", t.opts.ScriptLabel, err)}
	}

	return formatRunOutput(res), nil
}

func formatRunOutput(res sandbox.ExecuteResult) string {
	stdout := strings.TrimSpace(string(res.Stdout))
	stderr := strings.TrimSpace(string(res.Stderr))

	var parts []string
	if stdout != "" {
		parts = append(parts, "STDOUT:\n"+stdout)
	}
	if stderr != "" {
		parts = append(parts, "STDERR:\n"+stderr)
	}
	if res.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("Process exited with code %d", res.ExitCode))
	}
	if len(parts) == 0 {
		return "No output produced."
	}
	return strings.Join(parts, "\n")
}
