package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/internal/tracing"
	"github.com/agencyswarm/claii/pkg/protocol"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// SQLiteStore keeps history as ordered rows in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("memory database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		);
	`)
	return err
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads all rows in order.
func (s *SQLiteStore) Load(ctx context.Context) (messages []protocol.Message, err error) {
	ctx, span := tracing.StartSpan(ctx, "claii.memory", "memory.load",
		attribute.String("backend", BackendSQLite))
	defer func() { tracing.EndSpan(span, err) }()
	start := time.Now()
	defer func() {
		observability.RecordMemoryLoad(time.Since(start))
	}()

	rows, err := s.db.QueryContext(ctx, "SELECT role, text FROM messages ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Role, &rec.Text); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}

	messages = FromRecords(records)
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Int("records", len(records)).
		Int("messages", len(messages)).
		Msg("Memory loaded")
	return messages, nil
}

// Save replaces every row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, messages []protocol.Message) (err error) {
	ctx, span := tracing.StartSpan(ctx, "claii.memory", "memory.save",
		attribute.String("backend", BackendSQLite),
		attribute.Int("messages", len(messages)))
	defer func() { tracing.EndSpan(span, err) }()
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to clear memory: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO messages (seq, role, text, saved_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, rec := range ToRecords(messages) {
		if _, err := stmt.ExecContext(ctx, i, rec.Role, rec.Text, now); err != nil {
			return fmt.Errorf("failed to insert memory row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memory: %w", err)
	}

	observability.RecordMemorySave(time.Since(start), len(messages))
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Int("messages", len(messages)).
		Msg("Memory saved")
	return nil
}

// Clear deletes all rows.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to clear memory: %w", err)
	}
	observability.RecordMemoryAudit(ctx, "clear", map[string]interface{}{"path": s.path})
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
