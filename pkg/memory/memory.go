package memory

import (
	"context"
	"fmt"

	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/rs/zerolog"
)

const (
	// DefaultFileName is the JSON memory file, relative to the project root.
	DefaultFileName = ".claii_memory.json"
	// DefaultMaxMessages is how many messages pruning keeps.
	DefaultMaxMessages = 200
)

// Backends accepted by NewStore.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config selects and configures a store.
type Config struct {
	Backend string
	Path    string
	Logger  zerolog.Logger
}

// Record is the persisted form of one message.
type Record struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Store loads and saves conversation history.
type Store interface {
	Load(ctx context.Context) ([]protocol.Message, error)
	Save(ctx context.Context, messages []protocol.Message) error
	Clear(ctx context.Context) error
	Close() error
}

// ToRecords flattens messages to their text. Messages without text are
// still recorded so the stored sequence mirrors the conversation.
func ToRecords(messages []protocol.Message) []Record {
	records := make([]Record, 0, len(messages))
	for _, msg := range messages {
		records = append(records, Record{Role: string(msg.Role), Text: msg.Text()})
	}
	return records
}

// FromRecords rebuilds messages from persisted records. Roles other than
// user and model become user; records with no text are skipped.
func FromRecords(records []Record) []protocol.Message {
	messages := make([]protocol.Message, 0, len(records))
	for _, rec := range records {
		if rec.Text == "" {
			continue
		}
		messages = append(messages, protocol.NewTextMessage(normalizeRole(rec.Role), rec.Text))
	}
	return messages
}

func normalizeRole(role string) protocol.Role {
	if r := protocol.Role(role); r == protocol.RoleUser || r == protocol.RoleModel {
		return r
	}
	return protocol.RoleUser
}

// Prune keeps the most recent n messages in order. n <= 0 keeps everything.
func Prune(messages []protocol.Message, n int) []protocol.Message {
	h := NewHistory(n)
	for _, msg := range messages {
		h.Push(msg)
	}
	return h.Messages()
}

// NewStore opens the store for cfg.Backend. An empty backend means JSON.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendJSON:
		store, err := NewFileStore(cfg.Path, cfg.Logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		store, err := NewSQLiteStore(cfg.Path, cfg.Logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}
