package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"referendum-pipeline/internal/model"
	"referendum-pipeline/internal/store"
	"referendum-pipeline/pkg/utils"
)

// csvHeader is the column order of the CSV export.
var csvHeader = []string{"code_reg", "name_reg", "registered", "abstentions", "null", "choice_a", "choice_b", "ratio"}

// ExportManager handles data export operations
type ExportManager struct {
	RunID      string
	ExportSpec *model.Export
	Output     *utils.OutputManager
	Retry      model.RetryConfig
}

// NewExportManager creates an export manager writing under spec.OutputDir
func NewExportManager(runID string, spec *model.Export) *ExportManager {
	dir := spec.OutputDir
	if dir == "" {
		dir = "exports"
	}
	return &ExportManager{
		RunID:      runID,
		ExportSpec: spec,
		Output:     utils.NewOutputManager(dir),
		Retry:      DefaultRetryConfigs[StageExport],
	}
}

// ExportResults writes the final results to every configured target
func (em *ExportManager) ExportResults(ctx context.Context, results []model.FinalResult) []model.ExportResult {
	fmt.Printf("💾 Export: Starting export of %d regional results\n", len(results))

	var out []model.ExportResult
	for _, file := range em.ExportSpec.Files {
		out = append(out, em.exportToFile(file, results))
	}
	if em.ExportSpec.DB {
		out = append(out, em.exportToDatabase(ctx, results))
	}
	return out
}

// exportToFile exports data to a file, picking the format from the extension
func (em *ExportManager) exportToFile(name string, results []model.FinalResult) model.ExportResult {
	result := model.ExportResult{Type: "file", Path: name, Timestamp: time.Now()}

	path, err := em.Output.GetOutputFilePath(em.RunID, name)
	if err == nil {
		result.Path = path
		result.RecordCount, err = em.writeFile(path, results)
	}

	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
		fmt.Printf("❌ Export to file failed: %v\n", err)
	} else {
		fmt.Printf("✅ Export to file successful: %d records exported to %s\n", result.RecordCount, path)
	}
	return result
}

func (em *ExportManager) writeFile(path string, results []model.FinalResult) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch em.Output.GetFileType(path) {
	case "json":
		return WriteJSON(file, em.RunID, results)
	case "geojson":
		return WriteGeoJSON(file, results)
	default:
		// Default to CSV if no extension or unknown extension
		return WriteCSV(file, results)
	}
}

// WriteCSV writes one row per region; an undefined ratio is an empty cell
func WriteCSV(w io.Writer, results []model.FinalResult) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range results {
		row := []string{
			r.CodeReg,
			r.NameReg,
			strconv.FormatInt(r.Registered, 10),
			strconv.FormatInt(r.Abstentions, 10),
			strconv.FormatInt(r.Null, 10),
			strconv.FormatInt(r.ChoiceA, 10),
			strconv.FormatInt(r.ChoiceB, 10),
			r.Ratio.String(),
		}
		if err := writer.Write(row); err != nil {
			return i, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return len(results), writer.Error()
}

// WriteJSON writes the results with export metadata; undefined ratios are null
func WriteJSON(w io.Writer, runID string, results []model.FinalResult) (int, error) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":       runID,
			"exported_at":  time.Now().UTC(),
			"record_count": len(results),
			"export_type":  "regional_results",
		},
		"data": results,
	}
	if err := encoder.Encode(exportData); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return len(results), nil
}

// FeatureCollection converts results to GeoJSON features whose properties
// carry the result columns. This is what the map renderer consumes.
func FeatureCollection(results []model.FinalResult) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(results))}
	for _, r := range results {
		var ratio interface{}
		if r.Ratio.Valid {
			ratio = r.Ratio.Value
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.CodeReg,
			Geometry: r.Geometry,
			Properties: map[string]interface{}{
				"code_reg":    r.CodeReg,
				"name_reg":    r.NameReg,
				"registered":  r.Registered,
				"abstentions": r.Abstentions,
				"null":        r.Null,
				"choice_a":    r.ChoiceA,
				"choice_b":    r.ChoiceB,
				"ratio":       ratio,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes the results as a GeoJSON FeatureCollection
func WriteGeoJSON(w io.Writer, results []model.FinalResult) (int, error) {
	b, err := json.Marshal(FeatureCollection(results))
	if err != nil {
		return 0, fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return 0, err
	}
	return len(results), nil
}

// exportToDatabase stores the results in the run store
func (em *ExportManager) exportToDatabase(ctx context.Context, results []model.FinalResult) model.ExportResult {
	recordCount := 0
	var lastError error

	for _, r := range results {
		if err := ctx.Err(); err != nil {
			lastError = err
			break
		}
		err := WithRetry(ctx, em.Retry, "save result "+r.CodeReg, func() error {
			return store.SaveFinalResult(em.RunID, r)
		})
		if err != nil {
			lastError = err
			fmt.Printf("❌ Failed to save regional result: %v\n", err)
			continue
		}
		recordCount++
	}

	exportResult := model.ExportResult{
		Type:        "database",
		Path:        "regional_results",
		RecordCount: recordCount,
		Success:     lastError == nil,
		Timestamp:   time.Now(),
	}
	if lastError != nil {
		exportResult.Error = lastError.Error()
		fmt.Printf("❌ Export to database failed: %v\n", lastError)
	} else {
		fmt.Printf("✅ Export to database successful: %d records exported\n", recordCount)
	}
	return exportResult
}
