package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/agencyswarm/claii/internal/config"
	"github.com/agencyswarm/claii/internal/logger"
	"github.com/agencyswarm/claii/pkg/agent"
	"github.com/agencyswarm/claii/pkg/coretools"
	"github.com/agencyswarm/claii/pkg/memory"
	"github.com/agencyswarm/claii/pkg/sandbox"
	"github.com/agencyswarm/claii/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// newProvider builds the model provider for a run. Tests replace it.
var newProvider = func(cfg *config.Config, log zerolog.Logger) (agent.LLMProvider, error) {
	profiles := make([]agent.AuthProfile, 0, len(cfg.AI.Profiles))
	for _, p := range cfg.AI.Profiles {
		profiles = append(profiles, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Model:    p.Model,
			Priority: p.Priority,
		})
	}
	return agent.NewFailoverProvider(profiles, nil, agent.FailoverOptions{
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	})
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.workDir != "" {
		cfg.WorkingDir = opts.workDir
	}
	cfg.UseProvider(opts.provider, opts.model)
	return cfg, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) (*logger.Logger, error) {
	var secrets []string
	for _, p := range cfg.AI.Profiles {
		secrets = append(secrets, p.APIKey)
	}
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    true,
		Out:       stderr,
		Redaction: cfg.Logging.Redaction,
		Secrets:   secrets,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

// projectRoot returns the absolute sandbox root.
func projectRoot(cfg *config.Config) (string, error) {
	root, err := sandbox.CanonicalRoot(cfg.WorkingDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory %q: %w", cfg.WorkingDir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("invalid working directory %q: %w", cfg.WorkingDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("invalid working directory %q: not a directory", cfg.WorkingDir)
	}
	return root, nil
}

// newToolset wires the core tools into a fresh executor.
func newToolset(cfg *config.Config) (*toolexecutor.ToolExecutor, *coretools.Toolset, error) {
	memPath, err := memoryPath(cfg)
	if err != nil {
		return nil, nil, err
	}

	sb, err := sandbox.NewHostSandbox(sandbox.Config{
		Timeout:   cfg.Tools.ScriptTimeoutDuration(),
		WaitDelay: 2 * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	toolset, err := coretools.New(coretools.Options{
		MaxFileChars:    cfg.Tools.MaxFileChars,
		MaxKBChars:      cfg.Tools.MaxKBChars,
		KBDir:           cfg.Tools.KBDir,
		Interpreter:     cfg.Tools.Interpreter,
		ScriptExtension: cfg.Tools.ScriptExtension,
		ScriptTimeout:   cfg.Tools.ScriptTimeoutDuration(),
		Hidden:          memoryFiles(cfg.Memory.Backend, memPath),
	}, sb)
	if err != nil {
		return nil, nil, err
	}

	executor := toolexecutor.New()
	if err := coretools.RegisterCoreTools(executor, toolset); err != nil {
		return nil, nil, err
	}
	return executor, toolset, nil
}

// toolPolicy returns nil when the config allows every tool. An empty allow
// list means all tools.
func toolPolicy(cfg *config.Config) *toolexecutor.ToolPolicy {
	allow := cfg.Tools.Allow
	if len(allow) == 0 {
		allow = []string{"*"}
	}
	if len(cfg.Tools.Deny) == 0 && len(allow) == 1 && allow[0] == "*" {
		return nil
	}
	return &toolexecutor.ToolPolicy{Allow: allow, Deny: cfg.Tools.Deny}
}

// memoryPath returns the absolute location of the memory store. Relative
// paths are taken from the process working directory.
func memoryPath(cfg *config.Config) (string, error) {
	if cfg.Memory.Path == "" {
		return "", nil
	}
	path, err := filepath.Abs(cfg.Memory.Path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve memory path %q: %w", cfg.Memory.Path, err)
	}
	return path, nil
}

// memoryFiles lists every file the memory backend keeps at path, so the
// model's tools can be kept away from them.
func memoryFiles(backend, path string) []string {
	if path == "" {
		return nil
	}
	files := []string{path}
	if backend == memory.BackendSQLite {
		files = append(files, path+"-journal", path+"-wal", path+"-shm")
	}
	return files
}

func openMemory(cfg *config.Config, log zerolog.Logger) (memory.Store, error) {
	path, err := memoryPath(cfg)
	if err != nil {
		return nil, err
	}
	return memory.NewStore(memory.Config{
		Backend: cfg.Memory.Backend,
		Path:    path,
		Logger:  log,
	})
}
