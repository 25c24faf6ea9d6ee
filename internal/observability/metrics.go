package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	registry *prometheus.Registry

	memoryLoadDuration prometheus.Histogram
	memorySaveDuration prometheus.Histogram
	memoryMessages     prometheus.Gauge

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	agentRunTotal    *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	agentRunSteps    *prometheus.HistogramVec
	agentErrorsTotal *prometheus.CounterVec

	providerRetriesTotal *prometheus.CounterVec
	providerCooldown     *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			registry: prometheus.NewRegistry(),
			memoryLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "claii_memory_load_duration_seconds",
					Help:    "Conversation memory load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memorySaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "claii_memory_save_duration_seconds",
					Help:    "Conversation memory save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryMessages: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "claii_memory_messages",
					Help: "Messages held in conversation memory after the last save.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "claii_tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "claii_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "claii_tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "claii_agent_run_total",
					Help: "Total agent runs by provider and outcome.",
				},
				[]string{"provider", "outcome"},
			),
			agentRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "claii_agent_run_duration_seconds",
					Help:    "Agent run duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			agentRunSteps: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "claii_agent_run_steps",
					Help:    "Model steps taken per agent run.",
					Buckets: prometheus.LinearBuckets(1, 2, 10),
				},
				[]string{"provider"},
			),
			agentErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "claii_agent_errors_total",
					Help: "Total aborted agent runs by provider.",
				},
				[]string{"provider"},
			),
			providerRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "claii_provider_retries_total",
					Help: "Total retried model calls by provider.",
				},
				[]string{"provider"},
			),
			providerCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "claii_provider_cooldown_active",
					Help: "Provider cooldown active state (1 active, 0 inactive).",
				},
				[]string{"provider"},
			),
		}

		m.registry.MustRegister(
			m.memoryLoadDuration,
			m.memorySaveDuration,
			m.memoryMessages,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.agentRunTotal,
			m.agentRunDuration,
			m.agentRunSteps,
			m.agentErrorsTotal,
			m.providerRetriesTotal,
			m.providerCooldown,
		)

		metricsInst = m
	})

	return metricsInst
}

// Registry returns the registry all CLAII metrics live in.
func Registry() *prometheus.Registry {
	return getMetrics().registry
}

// WriteTextfile dumps the current metrics in the node_exporter textfile
// format. The write is atomic.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func RecordMemoryLoad(duration time.Duration) {
	m := getMetrics()
	m.memoryLoadDuration.Observe(duration.Seconds())
}

func RecordMemorySave(duration time.Duration, messages int) {
	m := getMetrics()
	m.memorySaveDuration.Observe(duration.Seconds())
	m.memoryMessages.Set(float64(messages))
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

// RecordAgentRun counts a finished run. outcome is "completed",
// "step_budget_exhausted" or "error".
func RecordAgentRun(provider, outcome string, steps int, duration time.Duration) {
	m := getMetrics()
	m.agentRunTotal.WithLabelValues(provider, outcome).Inc()
	m.agentRunDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.agentRunSteps.WithLabelValues(provider).Observe(float64(steps))
	if outcome == "error" {
		m.agentErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func RecordProviderRetry(provider string) {
	m := getMetrics()
	m.providerRetriesTotal.WithLabelValues(provider).Inc()
}

func SetProviderCooldown(provider string, active bool) {
	m := getMetrics()
	value := 0.0
	if active {
		value = 1.0
	}
	m.providerCooldown.WithLabelValues(provider).Set(value)
}
