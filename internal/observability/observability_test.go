package observability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dumpMetrics(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claii.prom")
	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecordToolExecution(t *testing.T) {
	RecordToolExecution("obs_test_tool", 10*time.Millisecond, true)
	RecordToolExecution("obs_test_tool", 10*time.Millisecond, false)

	text := dumpMetrics(t)
	assert.Contains(t, text, `claii_tool_execution_total{status="success",tool="obs_test_tool"} 1`)
	assert.Contains(t, text, `claii_tool_errors_total{tool="obs_test_tool"} 1`)
}

func TestRecordAgentRun(t *testing.T) {
	RecordAgentRun("obs_test_provider", "completed", 2, time.Second)
	RecordAgentRun("obs_test_provider", "error", 1, time.Second)

	text := dumpMetrics(t)
	assert.Contains(t, text, `claii_agent_run_total{outcome="completed",provider="obs_test_provider"} 1`)
	assert.Contains(t, text, `claii_agent_errors_total{provider="obs_test_provider"} 1`)
	assert.Contains(t, text, `claii_agent_run_steps_count{provider="obs_test_provider"} 2`)
}

func TestWriteTextfile(t *testing.T) {
	RecordMemorySave(time.Millisecond, 42)
	SetProviderCooldown("obs_test_provider", true)

	path := filepath.Join(t.TempDir(), "metrics", "claii.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "claii_memory_messages 42")
	assert.Contains(t, text, `claii_provider_cooldown_active{provider="obs_test_provider"} 1`)

	assert.NoError(t, WriteTextfile(""))
}

func TestAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() { _ = GetAuditLogger().Close() })

	RecordToolAudit(context.Background(), "write_file", "run-1", true, map[string]interface{}{"n": 1})
	RecordMemoryAudit(context.Background(), "clear", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "tool", first["type"])
	assert.Equal(t, "execute:write_file", first["action"])
	assert.Equal(t, "run-1", first["run_id"])
	assert.Equal(t, "success", first["status"])

	assert.Contains(t, lines[1], `"action":"memory:clear"`)
}
