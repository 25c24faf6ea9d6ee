package coretools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/agencyswarm/claii/pkg/sandbox"
	"github.com/agencyswarm/claii/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolset(t *testing.T, opts Options) *Toolset {
	t.Helper()
	sb, err := sandbox.NewHostSandbox(sandbox.DefaultConfig())
	require.NoError(t, err)
	ts, err := New(opts, sb)
	require.NoError(t, err)
	return ts
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "kb", "lang"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print('hi')\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "calc.py"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kb", "design.md"), []byte("# Design\n"), 0644))
	return root
}

func TestNew(t *testing.T) {
	t.Run("should require a sandbox", func(t *testing.T) {
		_, err := New(DefaultOptions(), nil)
		assert.Error(t, err)
	})

	t.Run("should fill zero options with defaults", func(t *testing.T) {
		ts := newToolset(t, Options{})
		assert.Equal(t, DefaultOptions(), ts.Options())
	})
}

func TestListFiles(t *testing.T) {
	ts := newToolset(t, DefaultOptions())
	root := newWorkspace(t)

	t.Run("lists root sorted with sizes", func(t *testing.T) {
		for _, dir := range []string{"", "."} {
			out, err := ts.ListFiles(root, dir)
			require.NoError(t, err)

			lines := strings.Split(out, "\n")
			require.Len(t, lines, 3)
			assert.True(t, strings.HasPrefix(lines[0], "- kb: file_size="))
			assert.True(t, strings.HasSuffix(lines[0], "is_dir=true"))
			assert.Equal(t, "- main.py: file_size=12 bytes, is_dir=false", lines[1])
			assert.True(t, strings.HasPrefix(lines[2], "- pkg: "))
		}
	})

	t.Run("lists a subdirectory", func(t *testing.T) {
		out, err := ts.ListFiles(root, "pkg")
		require.NoError(t, err)
		assert.Equal(t, "- calc.py: file_size=6 bytes, is_dir=false", out)
	})

	t.Run("empty directory has a marker", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
		out, err := ts.ListFiles(root, "empty")
		require.NoError(t, err)
		assert.Equal(t, "(empty directory)", out)
	})

	t.Run("file is not a directory", func(t *testing.T) {
		_, err := ts.ListFiles(root, "main.py")
		assert.ErrorIs(t, err, sandbox.ErrNotDirectory)
		assert.Equal(t, `"main.py" is not a directory`, err.Error())
	})

	t.Run("outside root is rejected", func(t *testing.T) {
		_, err := ts.ListFiles(root, "../")
		assert.ErrorIs(t, err, sandbox.ErrOutsideRoot)
		assert.Equal(t, `Cannot list "../" as it is outside the permitted working directory`, err.Error())
	})
}

func TestReadFile(t *testing.T) {
	root := newWorkspace(t)

	t.Run("reads a small file", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		out, err := ts.ReadFile(root, "main.py")
		require.NoError(t, err)
		assert.Equal(t, "print('hi')\n", out)
	})

	t.Run("truncates by characters with a marker", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxFileChars = 5
		ts := newToolset(t, opts)

		require.NoError(t, os.WriteFile(filepath.Join(root, "long.txt"), []byte("héllo wörld"), 0644))
		out, err := ts.ReadFile(root, "long.txt")
		require.NoError(t, err)
		assert.Equal(t, "héllo\n[...File \"long.txt\" truncated at 5 characters]", out)
	})

	t.Run("exactly at the cap is not truncated", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxFileChars = 5
		ts := newToolset(t, opts)

		require.NoError(t, os.WriteFile(filepath.Join(root, "five.txt"), []byte("abcde"), 0644))
		out, err := ts.ReadFile(root, "five.txt")
		require.NoError(t, err)
		assert.Equal(t, "abcde", out)
	})

	t.Run("missing file", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.ReadFile(root, "nope.py")
		assert.ErrorIs(t, err, sandbox.ErrNotRegularFile)
		assert.Equal(t, `File not found or is not a regular file: "nope.py"`, err.Error())
	})

	t.Run("directory is not a regular file", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.ReadFile(root, "pkg")
		assert.ErrorIs(t, err, sandbox.ErrNotRegularFile)
	})

	t.Run("outside root", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.ReadFile(root, "/etc/passwd")
		assert.Equal(t, `Cannot read "/etc/passwd" as it is outside the permitted working directory`, err.Error())
	})
}

func TestWriteFile(t *testing.T) {
	ts := newToolset(t, DefaultOptions())
	root := newWorkspace(t)

	t.Run("write then read round trips", func(t *testing.T) {
		out, err := ts.WriteFile(root, "pkg/new/notes.txt", "lorem ipsum")
		require.NoError(t, err)
		assert.Equal(t, `Successfully wrote to "pkg/new/notes.txt" (11 characters written)`, out)

		got, err := ts.ReadFile(root, "pkg/new/notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "lorem ipsum", got)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		out, err := ts.WriteFile(root, "u.txt", "ñandú")
		require.NoError(t, err)
		assert.Contains(t, out, "(5 characters written)")
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		_, err := ts.WriteFile(root, "main.py", "print('new')")
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, "main.py"))
		require.NoError(t, err)
		assert.Equal(t, "print('new')", string(data))

		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
		}
	})

	t.Run("outside root writes nothing", func(t *testing.T) {
		_, err := ts.WriteFile(root, "../escape.txt", "x")
		assert.ErrorIs(t, err, sandbox.ErrOutsideRoot)
		assert.Equal(t, `Cannot write to "../escape.txt" as it is outside the permitted working directory`, err.Error())

		_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("directory target is reported", func(t *testing.T) {
		_, err := ts.WriteFile(root, "pkg", "x")
		assert.Error(t, err)
	})
}

func TestReadKBFile(t *testing.T) {
	root := newWorkspace(t)

	t.Run("reads from kb directory", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		out, err := ts.ReadKBFile(root, "design.md")
		require.NoError(t, err)
		assert.Equal(t, "# Design\n", out)
	})

	t.Run("truncates silently at its own cap", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxKBChars = 3
		opts.MaxFileChars = 100
		ts := newToolset(t, opts)

		out, err := ts.ReadKBFile(root, "design.md")
		require.NoError(t, err)
		assert.Equal(t, "# D", out)
	})

	t.Run("missing kb file", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.ReadKBFile(root, "lang/missing.md")
		assert.ErrorIs(t, err, sandbox.ErrNotFound)
		assert.Equal(t, `KB file not found: "lang/missing.md"`, err.Error())
	})

	t.Run("escaping the kb directory is rejected even inside root", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.ReadKBFile(root, "../main.py")
		assert.ErrorIs(t, err, sandbox.ErrOutsideRoot)
		assert.Equal(t, `Cannot read "../main.py" as it is outside the KB directory`, err.Error())
	})

	t.Run("kb directory linked outside root is rejected", func(t *testing.T) {
		outside := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret\n"), 0644))

		linked := t.TempDir()
		require.NoError(t, os.Symlink(outside, filepath.Join(linked, "kb")))

		ts := newToolset(t, DefaultOptions())
		out, err := ts.ReadKBFile(linked, "secret.md")
		assert.ErrorIs(t, err, sandbox.ErrOutsideRoot)
		assert.Empty(t, out)
	})
}

func TestHiddenPaths(t *testing.T) {
	root := newWorkspace(t)
	memoryPath := filepath.Join(root, ".claii_memory.json")
	require.NoError(t, os.WriteFile(memoryPath, []byte(`[{"role":"user","text":"hi"}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kb", "private.md"), []byte("private\n"), 0644))

	opts := DefaultOptions()
	opts.Hidden = []string{memoryPath, filepath.Join(root, "kb", "private.md")}
	ts := newToolset(t, opts)

	t.Run("listing skips hidden files", func(t *testing.T) {
		out, err := ts.ListFiles(root, "")
		require.NoError(t, err)
		assert.NotContains(t, out, ".claii_memory.json")
		assert.Contains(t, out, "- main.py: ")
	})

	t.Run("listing a directory of only hidden files reads as empty", func(t *testing.T) {
		dir := t.TempDir()
		only := filepath.Join(dir, "state.json")
		require.NoError(t, os.WriteFile(only, []byte("{}"), 0644))

		opts := DefaultOptions()
		opts.Hidden = []string{only}
		out, err := newToolset(t, opts).ListFiles(dir, "")
		require.NoError(t, err)
		assert.Equal(t, "(empty directory)", out)
	})

	t.Run("reading is rejected", func(t *testing.T) {
		_, err := ts.ReadFile(root, ".claii_memory.json")
		assert.ErrorIs(t, err, ErrReserved)
		assert.Equal(t, `Cannot read ".claii_memory.json" as it is reserved`, err.Error())

		_, err = ts.ReadFile(root, "pkg/../.claii_memory.json")
		assert.ErrorIs(t, err, ErrReserved)
	})

	t.Run("reading through a symlink is rejected", func(t *testing.T) {
		require.NoError(t, os.Symlink(memoryPath, filepath.Join(root, "alias.json")))
		_, err := ts.ReadFile(root, "alias.json")
		assert.ErrorIs(t, err, ErrReserved)

		out, err := ts.ListFiles(root, "")
		require.NoError(t, err)
		assert.NotContains(t, out, "alias.json")
	})

	t.Run("writing is rejected and leaves the file alone", func(t *testing.T) {
		_, err := ts.WriteFile(root, ".claii_memory.json", "[]")
		assert.ErrorIs(t, err, ErrReserved)

		data, err := os.ReadFile(memoryPath)
		require.NoError(t, err)
		assert.Equal(t, `[{"role":"user","text":"hi"}]`, string(data))
	})

	t.Run("kb reads are rejected", func(t *testing.T) {
		_, err := ts.ReadKBFile(root, "private.md")
		assert.ErrorIs(t, err, ErrReserved)
	})

	t.Run("running is rejected", func(t *testing.T) {
		_, err := ts.RunScript(context.Background(), root, ".claii_memory.json", nil)
		assert.ErrorIs(t, err, ErrReserved)
	})
}

func TestRunScript(t *testing.T) {
	root := newWorkspace(t)
	ctx := context.Background()

	shellOpts := DefaultOptions()
	shellOpts.Interpreter = "sh"
	shellOpts.ScriptExtension = ".sh"
	shellOpts.ScriptLabel = "shell"

	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0644))
	}

	t.Run("validation order: containment first", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.RunScript(ctx, root, "../missing.txt", nil)
		assert.ErrorIs(t, err, sandbox.ErrOutsideRoot)
		assert.Equal(t, `Cannot execute "../missing.txt" as it is outside the permitted working directory`, err.Error())
	})

	t.Run("validation order: existence before extension", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		_, err := ts.RunScript(ctx, root, "missing.txt", nil)
		assert.ErrorIs(t, err, sandbox.ErrNotFound)
		assert.Equal(t, `File "missing.txt" not found.`, err.Error())
	})

	t.Run("wrong extension is not executed", func(t *testing.T) {
		ts := newToolset(t, DefaultOptions())
		write("touch.txt", "")
		_, err := ts.RunScript(ctx, root, "touch.txt", nil)
		assert.ErrorIs(t, err, sandbox.ErrNotScript)
		assert.Equal(t, `"touch.txt" is not a Python file.`, err.Error())
	})

	t.Run("captures streams and exit code", func(t *testing.T) {
		ts := newToolset(t, shellOpts)
		write("both.sh", "echo \"args: $1 $2\"\necho oops 1>&2\nexit 2\n")

		out, err := ts.RunScript(ctx, root, "both.sh", []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, "STDOUT:\nargs: a b\nSTDERR:\noops\nProcess exited with code 2", out)
	})

	t.Run("runs with the root as cwd", func(t *testing.T) {
		ts := newToolset(t, shellOpts)
		write("pwd.sh", "pwd\n")

		out, err := ts.RunScript(ctx, root, "pwd.sh", nil)
		require.NoError(t, err)
		canon, _ := sandbox.CanonicalRoot(root)
		assert.Equal(t, "STDOUT:\n"+canon, out)
	})

	t.Run("silent success", func(t *testing.T) {
		ts := newToolset(t, shellOpts)
		write("quiet.sh", "true\n")

		out, err := ts.RunScript(ctx, root, "quiet.sh", nil)
		require.NoError(t, err)
		assert.Equal(t, "No output produced.", out)
	})

	t.Run("timeout wins over partial output", func(t *testing.T) {
		opts := shellOpts
		opts.ScriptTimeout = 200 * time.Millisecond
		ts := newToolset(t, opts)
		write("slow.sh", "echo partial\nsleep 10\n")

		_, err := ts.RunScript(ctx, root, "slow.sh", nil)
		assert.ErrorIs(t, err, sandbox.ErrExecutionTimeout)
		assert.Equal(t, "executing shell file: timed out after 0.2 seconds", err.Error())
	})

	t.Run("spawn failure is reported", func(t *testing.T) {
		opts := shellOpts
		opts.Interpreter = "no-such-interpreter-xyz"
		ts := newToolset(t, opts)
		write("any.sh", "true\n")

		_, err := ts.RunScript(ctx, root, "any.sh", nil)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "executing shell file: "))
		assert.False(t, errors.Is(err, sandbox.ErrExecutionTimeout))
	})
}

func TestRegisterCoreTools(t *testing.T) {
	te := toolexecutor.New()
	ts := newToolset(t, DefaultOptions())

	require.NoError(t, RegisterCoreTools(te, ts))
	assert.Equal(t, []string{
		ToolGetFilesInfo,
		ToolGetFileContent,
		ToolRunPythonFile,
		ToolWriteFile,
		ToolGetKBFile,
	}, te.ListTools())

	t.Run("declarations never mention the root", func(t *testing.T) {
		for _, decl := range te.Declarations(nil) {
			assert.NotContains(t, decl.Parameters.Properties, "working_directory", decl.Name)
		}
	})

	t.Run("requires executor and toolset", func(t *testing.T) {
		assert.Error(t, RegisterCoreTools(nil, ts))
		assert.Error(t, RegisterCoreTools(toolexecutor.New(), nil))
	})
}

func TestDispatchThroughExecutor(t *testing.T) {
	te := toolexecutor.New()
	require.NoError(t, RegisterCoreTools(te, newToolset(t, DefaultOptions())))
	root := newWorkspace(t)
	execCtx := &toolexecutor.ExecutionContext{WorkingDir: root}
	ctx := context.Background()

	result := func(msg protocol.Message) string {
		return msg.ToolResponses()[0].Response["result"].(string)
	}

	t.Run("model-supplied root is ignored", func(t *testing.T) {
		msg := te.Dispatch(ctx, protocol.ToolCall{
			Name: ToolGetFileContent,
			Args: map[string]any{"file_path": "main.py", "working_directory": "/"},
		}, execCtx)
		assert.Equal(t, "print('hi')\n", result(msg))
	})

	t.Run("tool errors carry the Error prefix", func(t *testing.T) {
		msg := te.Dispatch(ctx, protocol.ToolCall{
			Name: ToolGetFileContent,
			Args: map[string]any{"file_path": "../outside.txt"},
		}, execCtx)
		assert.Equal(t, `Error: Cannot read "../outside.txt" as it is outside the permitted working directory`, result(msg))
	})

	t.Run("args arrive as a JSON array", func(t *testing.T) {
		msg := te.Dispatch(ctx, protocol.ToolCall{
			Name: ToolRunPythonFile,
			Args: map[string]any{"file_path": "missing.py", "args": []any{"--flag"}},
		}, execCtx)
		assert.Equal(t, `Error: File "missing.py" not found.`, result(msg))
	})

	t.Run("listing with no arguments lists the root", func(t *testing.T) {
		msg := te.Dispatch(ctx, protocol.ToolCall{Name: ToolGetFilesInfo}, execCtx)
		assert.Contains(t, result(msg), "- main.py: file_size=")
	})

	t.Run("missing execution context is an error", func(t *testing.T) {
		msg := te.Dispatch(ctx, protocol.ToolCall{Name: ToolGetFilesInfo}, nil)
		assert.Equal(t, "Error: workspace root is not configured", result(msg))
	})
}
