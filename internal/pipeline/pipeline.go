package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"referendum-pipeline/internal/model"
	"referendum-pipeline/internal/store"
	"referendum-pipeline/pkg/utils"
)

var tracer = otel.Tracer("referendum-pipeline/internal/pipeline")

// RunOptions tunes a pipeline run.
type RunOptions struct {
	AggregationWorkers int      // <= 1 aggregates sequentially
	Tracker            *Tracker // optional; receives stage metrics and join diagnostics
}

// Output holds every intermediate table of a run, plus the final results.
type Output struct {
	Geography []model.GeoDepartmentRecord
	Ballots   []model.NormalizedBallotRecord
	Merged    []model.MergedRecord
	Regional  map[string]model.RegionalResult
	Results   []model.FinalResult
}

// ------------------- Pipeline Runner -------------------

// Run executes the five transformation stages in sequence. Each stage consumes
// the complete output of the previous one. Any fatal error aborts the run and
// no output is returned.
func Run(ctx context.Context, in model.Inputs, opts RunOptions) (*Output, error) {
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker("")
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", tracker.RunID),
	))
	defer span.End()

	fail := func(err error) (*Output, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tracker.Fail()
		return nil, err
	}

	if err := ValidateInputs(in); err != nil {
		return fail(err)
	}

	out := &Output{}

	err := runStage(ctx, tracker, StageGeography, len(in.Regions)+len(in.Departments), func(context.Context) (int, *model.JoinStats, error) {
		var stats model.JoinStats
		out.Geography, stats = joinGeography(in.Regions, in.Departments)
		return len(out.Geography), &stats, nil
	})
	if err != nil {
		return fail(err)
	}

	err = runStage(ctx, tracker, StageNormalize, len(in.Ballots), func(context.Context) (int, *model.JoinStats, error) {
		var stats model.JoinStats
		var err error
		out.Ballots, stats, err = normalizeBallots(in.Ballots)
		return len(out.Ballots), &stats, err
	})
	if err != nil {
		return fail(err)
	}

	err = runStage(ctx, tracker, StageMerge, len(out.Geography)+len(out.Ballots), func(context.Context) (int, *model.JoinStats, error) {
		var stats model.JoinStats
		out.Merged, stats = mergeBallotsAndGeography(out.Ballots, out.Geography)
		return len(out.Merged), &stats, nil
	})
	if err != nil {
		return fail(err)
	}

	err = runStage(ctx, tracker, StageAggregate, len(out.Merged), func(ctx context.Context) (int, *model.JoinStats, error) {
		var err error
		out.Regional, err = AggregateByRegionParallel(ctx, out.Merged, opts.AggregationWorkers)
		return len(out.Regional), nil, err
	})
	if err != nil {
		return fail(err)
	}

	err = runStage(ctx, tracker, StageCompose, len(out.Regional)+len(in.Geometries), func(context.Context) (int, *model.JoinStats, error) {
		var stats model.JoinStats
		out.Results, stats = composeWithGeometry(out.Regional, in.Geometries)
		return len(out.Results), &stats, nil
	})
	if err != nil {
		return fail(err)
	}

	tracker.Complete()
	span.SetAttributes(attribute.Int("results", len(out.Results)))
	return out, nil
}

func runStage(ctx context.Context, t *Tracker, name string, rowsIn int, fn func(context.Context) (int, *model.JoinStats, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s cancelled: %w", name, err)
	}

	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("rows.in", rowsIn)))
	defer span.End()
	t.StartStage(name, rowsIn)

	rowsOut, join, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.FailStage(name, err)
		return err
	}

	span.SetAttributes(attribute.Int("rows.out", rowsOut))
	if join != nil {
		span.SetAttributes(
			attribute.Int("rows.dropped_left", join.DroppedLeft),
			attribute.Int("rows.dropped_right", join.DroppedRight),
		)
	}
	t.EndStage(name, rowsOut, join)
	return nil
}

// ------------------- Run Execution -------------------

// Execute loads the inputs of spec, runs the pipeline and exports the results,
// keeping the run's status and stage metrics in the store.
func Execute(ctx context.Context, runID string, spec model.RunSpec) (err error) {
	start := time.Now()
	fmt.Printf("🚀 Starting pipeline for run: %s\n", runID)
	setRunStatus(runID, "running")

	tracker := NewTracker(runID)
	defer func() {
		for _, m := range tracker.Metrics().Stages {
			if e := store.SaveStage(runID, m); e != nil {
				log.Printf("❌ Failed to save stage %s of run %s: %v", m.StageName, runID, e)
			}
		}
		if err != nil {
			setRunStatus(runID, "failed")
			if e := store.SaveRunError(runID, err); e != nil {
				log.Printf("❌ Failed to record error of run %s: %v", runID, e)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(spec.JobTimeout))
	defer cancel()

	// --- INGESTION STAGE ---
	setRunStatus(runID, "ingesting")
	var in model.Inputs
	err = runStage(ctx, tracker, StageIngest, 0, func(ctx context.Context) (int, *model.JoinStats, error) {
		var err error
		in, err = LoadInputs(ctx, spec)
		return len(in.Regions) + len(in.Departments) + len(in.Ballots) + len(in.Geometries), nil, err
	})
	if err != nil {
		tracker.Fail()
		return err
	}

	// --- TRANSFORMATION STAGES ---
	setRunStatus(runID, "transforming")
	out, err := Run(ctx, in, RunOptions{AggregationWorkers: spec.AggregationWorkers, Tracker: tracker})
	if err != nil {
		return err
	}
	for _, d := range tracker.Diagnostics() {
		if d.DroppedLeft > 0 || d.DroppedRight > 0 {
			log.Printf("⚠️ Run %s: %s dropped %d left and %d right rows without a match", runID, d.Stage, d.DroppedLeft, d.DroppedRight)
		}
	}

	// --- EXPORT STAGE ---
	// the run store always receives the results; the API reads them from there
	setRunStatus(runID, "exporting")
	var failed int
	err = runStage(ctx, tracker, StageExport, len(out.Results), func(ctx context.Context) (int, *model.JoinStats, error) {
		exported := 0
		for _, r := range NewExportManager(runID, storeTarget(spec.Export)).ExportResults(ctx, out.Results) {
			if !r.Success {
				failed++
				continue
			}
			exported += r.RecordCount
		}
		return exported, nil, nil
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d export target(s) failed", failed)
	}

	fmt.Printf("🏁 Pipeline completed successfully for run: %s in %v\n", runID, time.Since(start))
	setRunStatus(runID, "completed")
	return nil
}

// storeTarget returns a copy of e that always includes the run store.
func storeTarget(e *model.Export) *model.Export {
	out := model.Export{}
	if e != nil {
		out = *e
	}
	out.DB = true
	return &out
}

func setRunStatus(runID, status string) {
	if err := store.UpdateRunStatus(runID, status); err != nil {
		log.Printf("❌ Failed to set status of run %s to %s: %v", runID, status, err)
	}
}
