package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"referendum-pipeline/internal/model"
	"referendum-pipeline/internal/pipeline"
	"referendum-pipeline/internal/store"
)

const runsPrefix = "/api/v1/runs/"

// runPipeline and retryPipeline run in the background; tests swap them out.
var (
	runPipeline   = pipeline.Execute
	retryPipeline = pipeline.RetryRun
)

// CreateRun creates and starts a new pipeline run
// @Summary Start a run
// @Description Validate the run definition, persist it and execute it in the background
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run definition"
// @Success 202 {object} map[string]interface{} "Run started"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	if missing := missingSources(spec.Sources); len(missing) > 0 {
		http.Error(w, "Missing sources: "+strings.Join(missing, ", "), http.StatusBadRequest)
		return
	}

	if spec.AggregationWorkers < 0 || spec.AggregationWorkers > pipeline.MaxAggregationWorkers {
		http.Error(w, fmt.Sprintf("aggregationWorkers must be between 0 and %d", pipeline.MaxAggregationWorkers), http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	go func() {
		if err := runPipeline(context.Background(), runID, spec); err != nil {
			fmt.Printf("❌ Run %s failed: %v\n", runID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Run started",
		"runID":     runID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	})
}

func missingSources(s model.Sources) []string {
	var missing []string
	for _, src := range []struct{ name, path string }{
		{"regions", s.Regions},
		{"departments", s.Departments},
		{"ballots", s.Ballots},
		{"geometries", s.Geometries},
	} {
		if src.path == "" {
			missing = append(missing, src.name)
		}
	}
	return missing
}

// ListRuns retrieves all runs
// @Summary List all runs
// @Tags runs
// @Produce json
// @Success 200 {array} store.Run "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a specific run
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} store.Run "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "")
	if !ok {
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunResults retrieves the regional results of a run
// @Summary Get regional results
// @Description Results carry ratio = null where no ballot was expressed
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Param sort query string false "code_reg, name_reg, registered or ratio"
// @Param order query string false "asc or desc"
// @Success 200 {object} map[string]interface{} "Regional results"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/results [get]
func GetRunResults(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/results")
	if !ok {
		return
	}
	results, ok := loadResults(w, runID)
	if !ok {
		return
	}

	q := r.URL.Query()
	ascending := !strings.EqualFold(q.Get("order"), "desc")
	pipeline.SortFinalResults(results, q.Get("sort"), ascending)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"results": results,
		"count":   len(results),
	})
}

// GetRunMap returns the results as GeoJSON for the map renderer
// @Summary Get results as a GeoJSON FeatureCollection
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "FeatureCollection"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/map [get]
func GetRunMap(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/map")
	if !ok {
		return
	}
	results, ok := loadResults(w, runID)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := pipeline.WriteGeoJSON(w, results); err != nil {
		http.Error(w, "Failed to encode map", http.StatusInternalServerError)
	}
}

// GetRunDiagnostics returns stage metrics and join drop counts
// @Summary Get stage metrics and join drop counts
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Stage metrics"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/diagnostics [get]
func GetRunDiagnostics(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/diagnostics")
	if !ok {
		return
	}
	if _, err := store.GetRun(runID); err != nil {
		writeStoreError(w, err)
		return
	}

	stages, err := store.GetStages(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve diagnostics", http.StatusInternalServerError)
		return
	}

	dropped := 0
	for _, s := range stages {
		if s.Join != nil {
			dropped += s.Join.DroppedLeft + s.Join.DroppedRight
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":       runID,
		"stages":       stages,
		"dropped_rows": dropped,
	})
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/errors")
	if !ok {
		return
	}

	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// RetryRun executes a stored run again
// @Summary Retry run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} map[string]interface{} "Retry initiated"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/retry [post]
func RetryRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r.URL.Path, "/retry")
	if !ok {
		return
	}
	if _, err := store.GetRun(runID); err != nil {
		writeStoreError(w, err)
		return
	}

	go func() {
		if err := retryPipeline(context.Background(), runID); err != nil {
			fmt.Printf("❌ Retry failed for run %s: %v\n", runID, err)
		} else {
			fmt.Printf("✅ Retry successful for run %s\n", runID)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Retry initiated",
		"run_id":  runID,
		"status":  "retrying",
	})
}

// ------------------- Helpers -------------------

// runIDFromPath extracts the run ID between runsPrefix and suffix.
func runIDFromPath(w http.ResponseWriter, path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return "", false
	}

	runID := path[len(runsPrefix) : len(path)-len(suffix)]
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}

func loadResults(w http.ResponseWriter, runID string) ([]model.FinalResult, bool) {
	if _, err := store.GetRun(runID); err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	results, err := store.GetFinalResults(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve results", http.StatusInternalServerError)
		return nil, false
	}
	return results, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	http.Error(w, "Failed to load run", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
