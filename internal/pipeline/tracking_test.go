package pipeline

import (
	"errors"
	"testing"

	"referendum-pipeline/internal/model"
)

func TestTracker(t *testing.T) {
	tr := NewTracker("run-1")
	tr.StartStage(StageGeography, 10)
	tr.EndStage(StageGeography, 8, &model.JoinStats{Stage: StageGeography, DroppedRight: 2})
	tr.StartStage(StageAggregate, 8)
	tr.EndStage(StageAggregate, 3, nil)
	tr.StartStage(StageCompose, 3)
	tr.FailStage(StageCompose, errors.New("boom"))
	tr.Fail()

	m := tr.Metrics()
	if m.RunID != "run-1" || m.Status != "failed" {
		t.Errorf("unexpected run metrics: %+v", m)
	}
	if len(m.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(m.Stages))
	}
	if s := m.Stages[0]; s.RowsIn != 10 || s.RowsOut != 8 || s.Status != "completed" {
		t.Errorf("unexpected geography stage: %+v", s)
	}
	if s := m.Stages[2]; s.Status != "failed" || s.ErrorCount != 1 {
		t.Errorf("unexpected compose stage: %+v", s)
	}

	diag := tr.Diagnostics()
	if len(diag) != 1 || diag[0].DroppedRight != 2 {
		t.Errorf("unexpected diagnostics: %+v", diag)
	}
}

func TestTrackerMetricsIsACopy(t *testing.T) {
	tr := NewTracker("run-1")
	tr.StartStage(StageMerge, 1)

	m := tr.Metrics()
	m.Stages[0].Status = "tampered"
	if tr.Metrics().Stages[0].Status != "running" {
		t.Error("Metrics exposed internal state")
	}
}

func TestTrackerIgnoresUnknownStage(t *testing.T) {
	tr := NewTracker("")
	tr.EndStage("nope", 1, nil)
	tr.FailStage("nope", errors.New("boom"))
	if len(tr.Metrics().Stages) != 0 {
		t.Error("expected no stages")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("no such file")
	err := newError(KindIO, StageIngest, cause, "failed to open %s", "a.csv")
	if got := err.Error(); got != "ingestion: failed to open a.csv: no such file" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, cause) || !errors.Is(err, ErrIO) || errors.Is(err, ErrSchema) {
		t.Error("unexpected errors.Is results")
	}
}
