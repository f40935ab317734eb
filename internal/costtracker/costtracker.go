package costtracker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
)

// CostEvent represents a single AI usage event and its cost.
type CostEvent struct {
	Operation string // "categorization" or "language_detection"
	RunID     string
	AmountUSD float64
	Details   map[string]interface{}
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
	RunCost(ctx context.Context, runID string) (float64, error)
}

// Sink persists usage beyond the process lifetime.
type Sink interface {
	RecordUsage(ctx context.Context, entry *models.UsageLog) error
}

// New returns an in-memory tracker.
func New() *MemoryTracker {
	return &MemoryTracker{byRun: make(map[string]float64)}
}

// MemoryTracker keeps process-lifetime totals, overall and per run, and
// optionally forwards every event to a Sink.
type MemoryTracker struct {
	mu     sync.Mutex
	total  float64
	events int
	byRun  map[string]float64
	sink   Sink
}

// WithSink forwards recorded events to sink. A sink failure is logged and
// does not fail RecordCost.
func (m *MemoryTracker) WithSink(sink Sink) *MemoryTracker {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	return m
}

func (m *MemoryTracker) RecordCost(ctx context.Context, event CostEvent) error {
	if event.RunID == "" {
		event.RunID = RunIDFromContext(ctx)
	}
	m.mu.Lock()
	m.total += event.AmountUSD
	m.events++
	if event.RunID != "" {
		m.byRun[event.RunID] += event.AmountUSD
	}
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		if err := sink.RecordUsage(ctx, toUsageLog(event)); err != nil {
			log.WithError(err).Warnf("Failed to persist %s usage", event.Operation)
		}
	}
	return nil
}

func (m *MemoryTracker) TotalCost(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *MemoryTracker) RunCost(ctx context.Context, runID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byRun[runID], nil
}

// Events is the number of recorded events.
func (m *MemoryTracker) Events() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func toUsageLog(event CostEvent) *models.UsageLog {
	entry := &models.UsageLog{
		Timestamp: time.Now().UTC(),
		RunID:     event.RunID,
		Operation: event.Operation,
		Cost:      event.AmountUSD,
	}
	entry.ProviderName, _ = event.Details["provider_name"].(string)
	entry.ModelName, _ = event.Details["model_name"].(string)
	entry.InputTokens, _ = event.Details["input_tokens"].(int)
	entry.OutputTokens, _ = event.Details["output_tokens"].(int)
	return entry
}

type runIDKey struct{}

// WithRunID tags ctx so costs recorded under it are attributed to runID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
