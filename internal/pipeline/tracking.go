package pipeline

import (
	"fmt"
	"sync"
	"time"

	"referendum-pipeline/internal/model"
)

// Stage names, in execution order.
const (
	StageIngest    = "ingestion"
	StageGeography = "geography_join"
	StageNormalize = "normalization"
	StageMerge     = "merge"
	StageAggregate = "aggregation"
	StageCompose   = "composition"
	StageExport    = "export"
)

// Tracker records per-stage metrics and join diagnostics for one run.
type Tracker struct {
	RunID   string
	mu      sync.RWMutex
	metrics model.RunMetrics
	index   map[string]int
}

// NewTracker creates a new tracker
func NewTracker(runID string) *Tracker {
	return &Tracker{
		RunID: runID,
		index: make(map[string]int),
		metrics: model.RunMetrics{
			RunID:     runID,
			StartTime: time.Now(),
			Status:    "running",
		},
	}
}

// StartStage marks the start of a pipeline stage
func (t *Tracker) StartStage(stage string, rowsIn int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.index[stage] = len(t.metrics.Stages)
	t.metrics.Stages = append(t.metrics.Stages, model.StageMetrics{
		StageName: stage,
		StartTime: time.Now(),
		RowsIn:    rowsIn,
		Status:    "running",
	})
}

// EndStage marks the end of a pipeline stage
func (t *Tracker) EndStage(stage string, rowsOut int, join *model.JoinStats) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[stage]
	if !ok {
		return
	}
	m := &t.metrics.Stages[i]
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.RowsOut = rowsOut
	m.Status = "completed"
	m.Join = join

	if join != nil && (join.DroppedLeft > 0 || join.DroppedRight > 0) {
		fmt.Printf("📊 Stage '%s' completed: %d rows out, dropped %d left / %d right\n",
			stage, rowsOut, join.DroppedLeft, join.DroppedRight)
		return
	}
	fmt.Printf("📊 Stage '%s' completed: %d rows out\n", stage, rowsOut)
}

// FailStage marks a stage as failed
func (t *Tracker) FailStage(stage string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[stage]
	if !ok {
		return
	}
	m := &t.metrics.Stages[i]
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Status = "failed"
	m.ErrorCount++
	fmt.Printf("❌ Stage '%s' failed: %v\n", stage, err)
}

// Complete marks the run as completed
func (t *Tracker) Complete() { t.finish("completed") }

// Fail marks the run as failed
func (t *Tracker) Fail() { t.finish("failed") }

func (t *Tracker) finish(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.EndTime = time.Now()
	t.metrics.Duration = t.metrics.EndTime.Sub(t.metrics.StartTime)
	t.metrics.Status = status
}

// Metrics returns a copy of the current run metrics
func (t *Tracker) Metrics() model.RunMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := t.metrics
	m.Stages = append([]model.StageMetrics(nil), t.metrics.Stages...)
	return m
}

// Diagnostics returns the join statistics of every finished stage
func (t *Tracker) Diagnostics() []model.JoinStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []model.JoinStats
	for _, s := range t.metrics.Stages {
		if s.Join != nil {
			out = append(out, *s.Join)
		}
	}
	return out
}
