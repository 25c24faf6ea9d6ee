package coretools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agencyswarm/claii/pkg/sandbox"
	"github.com/agencyswarm/claii/pkg/toolexecutor"
	"github.com/go-viper/mapstructure/v2"
)

// Tool names advertised to the model.
const (
	ToolGetFilesInfo   = "get_files_info"
	ToolGetFileContent = "get_file_content"
	ToolRunPythonFile  = "run_python_file"
	ToolWriteFile      = "write_file"
	ToolGetKBFile      = "get_kb_file"
)

// Options configures core tool behavior.
type Options struct {
	MaxFileChars    int
	MaxKBChars      int
	KBDir           string
	Interpreter     string
	ScriptExtension string
	ScriptLabel     string
	ScriptTimeout   time.Duration
	// Hidden lists files the tools never list, read, write or run, such as
	// the conversation memory. Relative entries resolve against the process
	// working directory.
	Hidden []string
}

// DefaultOptions returns the stock limits and the python3 runner.
func DefaultOptions() Options {
	return Options{
		MaxFileChars:    10000,
		MaxKBChars:      10000,
		KBDir:           "kb",
		Interpreter:     "python3",
		ScriptExtension: ".py",
		ScriptLabel:     "Python",
		ScriptTimeout:   30 * time.Second,
	}
}

// Toolset implements the sandboxed filesystem and script tools. Every
// operation takes the sandbox root explicitly.
type Toolset struct {
	opts    Options
	sandbox sandbox.Sandbox
	hide    map[string]struct{}
}

// New creates a toolset. sb runs scripts; it is required.
func New(opts Options, sb sandbox.Sandbox) (*Toolset, error) {
	if sb == nil {
		return nil, errors.New("sandbox is required")
	}
	defaults := DefaultOptions()
	if opts.MaxFileChars <= 0 {
		opts.MaxFileChars = defaults.MaxFileChars
	}
	if opts.MaxKBChars <= 0 {
		opts.MaxKBChars = defaults.MaxKBChars
	}
	if strings.TrimSpace(opts.KBDir) == "" {
		opts.KBDir = defaults.KBDir
	}
	if strings.TrimSpace(opts.Interpreter) == "" {
		opts.Interpreter = defaults.Interpreter
	}
	if opts.ScriptExtension == "" {
		opts.ScriptExtension = defaults.ScriptExtension
	}
	if opts.ScriptLabel == "" {
		opts.ScriptLabel = defaults.ScriptLabel
	}
	if opts.ScriptTimeout <= 0 {
		opts.ScriptTimeout = defaults.ScriptTimeout
	}

	hide := make(map[string]struct{}, len(opts.Hidden))
	for _, path := range opts.Hidden {
		canon, err := sandbox.CanonicalRoot(path)
		if err != nil {
			return nil, fmt.Errorf("invalid hidden path %q: %w", path, err)
		}
		hide[canon] = struct{}{}
	}
	return &Toolset{opts: opts, sandbox: sb, hide: hide}, nil
}

// hidden reports whether the canonical path is off limits to the model.
func (t *Toolset) hidden(path string) bool {
	_, ok := t.hide[path]
	return ok
}

// Options returns the effective options.
func (t *Toolset) Options() Options {
	return t.opts
}

// Argument shapes for each tool. None of them carries the sandbox root.
type (
	GetFilesInfoArgs struct {
		Directory string `mapstructure:"directory"`
	}
	GetFileContentArgs struct {
		FilePath string `mapstructure:"file_path"`
	}
	WriteFileArgs struct {
		FilePath string `mapstructure:"file_path"`
		Content  string `mapstructure:"content"`
	}
	RunPythonFileArgs struct {
		FilePath string   `mapstructure:"file_path"`
		Args     []string `mapstructure:"args"`
	}
	GetKBFileArgs struct {
		KBPath string `mapstructure:"kb_path"`
	}
)

// RegisterCoreTools registers the five sandboxed tools in their advertised order.
func RegisterCoreTools(executor *toolexecutor.ToolExecutor, toolset *Toolset) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}
	if toolset == nil {
		return errors.New("toolset is required")
	}

	tools := []toolexecutor.ToolDefinition{
		getFilesInfoTool(toolset),
		getFileContentTool(toolset),
		runPythonFileTool(toolset),
		writeFileTool(toolset),
		getKBFileTool(toolset),
	}

	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func getFilesInfoTool(ts *Toolset) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolGetFilesInfo,
		Description: "Lists files in the specified directory along with their sizes, constrained to the working directory.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "directory", Type: "string", Description: "The directory to list files from, relative to the working directory. If not provided, lists files in the working directory itself."},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			var args GetFilesInfoArgs
			root, err := prepare(ctx, params, &args)
			if err != nil {
				return "", err
			}
			return ts.ListFiles(root, args.Directory)
		},
	}
}

func getFileContentTool(ts *Toolset) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolGetFileContent,
		Description: "Read the contents of a file within the working directory.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "file_path", Type: "string", Description: "Path to the file, relative to the working directory.", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			var args GetFileContentArgs
			root, err := prepare(ctx, params, &args)
			if err != nil {
				return "", err
			}
			return ts.ReadFile(root, args.FilePath)
		},
	}
}

func runPythonFileTool(ts *Toolset) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolRunPythonFile,
		Description: "Executes a Python file inside the working directory and returns its stdout/stderr and exit code information.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "file_path", Type: "string", Description: "Path to the Python file to execute, relative to the working directory (e.g. 'main.py' or 'tests.py').", Required: true},
			{Name: "args", Type: "array", Items: "string", Description: "Optional list of additional command-line arguments to pass to the Python script."},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			var args RunPythonFileArgs
			root, err := prepare(ctx, params, &args)
			if err != nil {
				return "", err
			}
			return ts.RunScript(ctx, root, args.FilePath, args.Args)
		},
	}
}

func writeFileTool(ts *Toolset) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Writes or overwrites a text file in the working directory.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "file_path", Type: "string", Description: "Relative path of the file to write. Examples: 'main.txt', 'pkg/morelorem.txt'.", Required: true},
			{Name: "content", Type: "string", Description: "The text content to write into the file.", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			var args WriteFileArgs
			root, err := prepare(ctx, params, &args)
			if err != nil {
				return "", err
			}
			return ts.WriteFile(root, args.FilePath, args.Content)
		},
	}
}

func getKBFileTool(ts *Toolset) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolGetKBFile,
		Description: "Reads a knowledge base file under the kb/ directory for additional context.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "kb_path", Type: "string", Description: "Path under kb/, e.g. 'design.md' or 'lang/agent-architecture.md'", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			var args GetKBFileArgs
			root, err := prepare(ctx, params, &args)
			if err != nil {
				return "", err
			}
			return ts.ReadKBFile(root, args.KBPath)
		},
	}
}

// prepare pulls the sandbox root from the execution context and decodes the
// model-supplied arguments into out.
func prepare(ctx context.Context, params map[string]interface{}, out interface{}) (string, error) {
	root, err := resolveWorkspaceRoot(toolexecutor.ExecContextFromContext(ctx))
	if err != nil {
		return "", err
	}
	if err := mapstructure.Decode(params, out); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return root, nil
}

func resolveWorkspaceRoot(execCtx *toolexecutor.ExecutionContext) (string, error) {
	if execCtx != nil && strings.TrimSpace(execCtx.WorkingDir) != "" {
		return execCtx.WorkingDir, nil
	}
	return "", fmt.Errorf("workspace root is not configured")
}
