package memory

import "github.com/agencyswarm/claii/pkg/protocol"

// History is a queue of messages with an optional capacity. Once full,
// each push evicts the oldest message.
type History struct {
	buf      []protocol.Message
	start    int
	capacity int
}

// NewHistory creates a history holding at most capacity messages.
// capacity <= 0 means unbounded.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{capacity: capacity}
}

// Push appends msg and reports whether an older message was evicted.
func (h *History) Push(msg protocol.Message) bool {
	if h.capacity == 0 || len(h.buf) < h.capacity {
		h.buf = append(h.buf, msg)
		return false
	}
	h.buf[h.start] = msg
	h.start = (h.start + 1) % h.capacity
	return true
}

// Len returns the number of messages held.
func (h *History) Len() int {
	return len(h.buf)
}

// Capacity returns the bound, or 0 when unbounded.
func (h *History) Capacity() int {
	return h.capacity
}

// Messages returns a copy of the held messages, oldest first.
func (h *History) Messages() []protocol.Message {
	out := make([]protocol.Message, 0, len(h.buf))
	out = append(out, h.buf[h.start:]...)
	out = append(out, h.buf[:h.start]...)
	return out
}
