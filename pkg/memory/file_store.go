package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/internal/tracing"
	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// FileStore keeps history as a JSON array of records in a single file.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store backed by path. The file need not exist.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("memory file path is required")
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing or corrupt file yields an empty history.
func (s *FileStore) Load(ctx context.Context) (messages []protocol.Message, err error) {
	ctx, span := tracing.StartSpan(ctx, "claii.memory", "memory.load",
		attribute.String("backend", BackendJSON))
	defer func() { tracing.EndSpan(span, err) }()
	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()
	defer func() {
		observability.RecordMemoryLoad(time.Since(start))
	}()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Str("path", s.path).Msg("No memory file yet")
			return []protocol.Message{}, nil
		}
		logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read memory file, starting fresh")
		return []protocol.Message{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("Memory file is corrupt, starting fresh")
		return []protocol.Message{}, nil
	}

	messages = FromRecords(records)
	logger.Debug().
		Int("records", len(records)).
		Int("messages", len(messages)).
		Msg("Memory loaded")
	return messages, nil
}

// Save replaces the file with messages. Readers see either the old or the
// new file, never a partial one.
func (s *FileStore) Save(ctx context.Context, messages []protocol.Message) (err error) {
	ctx, span := tracing.StartSpan(ctx, "claii.memory", "memory.save",
		attribute.String("backend", BackendJSON),
		attribute.Int("messages", len(messages)))
	defer func() { tracing.EndSpan(span, err) }()
	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()

	data, err := json.MarshalIndent(ToRecords(messages), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write memory: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close memory: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace memory file: %w", err)
	}

	observability.RecordMemorySave(time.Since(start), len(messages))
	logger.Debug().Int("messages", len(messages)).Str("path", s.path).Msg("Memory saved")
	return nil
}

// Clear deletes the file.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete memory file: %w", err)
	}
	observability.RecordMemoryAudit(ctx, "clear", map[string]interface{}{"path": s.path})
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
