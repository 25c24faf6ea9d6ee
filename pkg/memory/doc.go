// Package memory persists conversation history between runs.
//
// Invariants:
// - Only text survives persistence; tool call and tool response parts are dropped.
// - Loaded records only carry the user or model role.
// - A missing or corrupt memory file loads as an empty history.
// - Saves replace the stored history as a whole.
//
// Usage:
//
//	store, _ := memory.NewStore(memory.Config{Backend: memory.BackendJSON, Path: ".claii_memory.json"})
//	defer store.Close()
//	msgs, _ := store.Load(ctx)
//	// ... run ...
//	_ = store.Save(ctx, memory.Prune(msgs, 200))
package memory
