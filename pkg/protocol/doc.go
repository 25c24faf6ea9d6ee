// Package protocol defines the provider-neutral conversation model shared by
// the agent loop, the tool dispatcher, and the memory store.
//
// Invariants:
// - A tool-role message only carries tool responses.
// - A tool response names a tool from the preceding model tool call.
package protocol
