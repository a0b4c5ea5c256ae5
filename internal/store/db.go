package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"referendum-pipeline/internal/model"
)

var db *sql.DB

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is a persisted pipeline run.
type Run struct {
	ID        string        `json:"id"`
	Spec      model.RunSpec `json:"spec"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// RunError is a fatal error recorded for a run.
type RunError struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// InitDB opens the database and creates tables if they do not exist
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	// sqlite allows a single writer; the API runs pipelines concurrently
	db.SetMaxOpenConns(1)

	tables := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		status TEXT,
		started_at DATETIME,
		ended_at DATETIME,
		rows_in INTEGER,
		rows_out INTEGER,
		error_count INTEGER,
		join_stats TEXT
	);`, `
	CREATE TABLE IF NOT EXISTS regional_results (
		run_id TEXT,
		code_reg TEXT,
		name_reg TEXT,
		registered INTEGER,
		abstentions INTEGER,
		null_votes INTEGER,
		choice_a INTEGER,
		choice_b INTEGER,
		ratio REAL,
		geometry TEXT,
		PRIMARY KEY (run_id, code_reg)
	);`,
	}

	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// SaveRun stores a new pipeline run
func SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), "pending", now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run
func SaveRunError(runID string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// GetRunErrors returns the errors recorded for a run, oldest first
func GetRunErrors(runID string) ([]RunError, error) {
	rows, err := db.Query(`SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []RunError{}
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// ListRuns returns all runs, newest first
func ListRuns() ([]Run, error) {
	rows, err := db.Query(`SELECT id, spec, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status
func GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`SELECT id, spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var specJSON string
	if err := s.Scan(&run.ID, &specJSON, &run.Status, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return nil, fmt.Errorf("decode spec of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// SaveStage records the metrics of one finished or failed stage
func SaveStage(runID string, m model.StageMetrics) error {
	var joinJSON sql.NullString
	if m.Join != nil {
		b, err := json.Marshal(m.Join)
		if err != nil {
			return err
		}
		joinJSON = sql.NullString{String: string(b), Valid: true}
	}
	var ended sql.NullTime
	if !m.EndTime.IsZero() {
		ended = sql.NullTime{Time: m.EndTime.UTC(), Valid: true}
	}

	_, err := db.Exec(`INSERT INTO run_stages (run_id, stage, status, started_at, ended_at, rows_in, rows_out, error_count, join_stats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.StageName, m.Status, m.StartTime.UTC(), ended, m.RowsIn, m.RowsOut, m.ErrorCount, joinJSON)
	return err
}

// GetStages returns the stage metrics of a run in execution order
func GetStages(runID string) ([]model.StageMetrics, error) {
	rows, err := db.Query(`SELECT stage, status, started_at, ended_at, rows_in, rows_out, error_count, join_stats
		FROM run_stages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []model.StageMetrics{}
	for rows.Next() {
		var m model.StageMetrics
		var ended sql.NullTime
		var joinJSON sql.NullString
		if err := rows.Scan(&m.StageName, &m.Status, &m.StartTime, &ended, &m.RowsIn, &m.RowsOut, &m.ErrorCount, &joinJSON); err != nil {
			return nil, err
		}
		if ended.Valid {
			m.EndTime = ended.Time
			m.Duration = m.EndTime.Sub(m.StartTime)
		}
		if joinJSON.Valid {
			var js model.JoinStats
			if err := json.Unmarshal([]byte(joinJSON.String), &js); err != nil {
				return nil, err
			}
			m.Join = &js
		}
		stages = append(stages, m)
	}
	return stages, rows.Err()
}

// SaveFinalResult stores one region of a run's final results
func SaveFinalResult(runID string, r model.FinalResult) error {
	var ratio sql.NullFloat64
	if r.Ratio.Valid {
		ratio = sql.NullFloat64{Float64: r.Ratio.Value, Valid: true}
	}
	var geometry sql.NullString
	if r.Geometry != nil {
		b, err := geojson.Marshal(r.Geometry)
		if err != nil {
			return fmt.Errorf("encode geometry of region %s: %w", r.CodeReg, err)
		}
		geometry = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.Exec(`INSERT OR REPLACE INTO regional_results
		(run_id, code_reg, name_reg, registered, abstentions, null_votes, choice_a, choice_b, ratio, geometry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.CodeReg, r.NameReg, r.Registered, r.Abstentions, r.Null, r.ChoiceA, r.ChoiceB, ratio, geometry)
	return err
}

// GetFinalResults returns a run's final results ordered by region code
func GetFinalResults(runID string) ([]model.FinalResult, error) {
	rows, err := db.Query(`SELECT code_reg, name_reg, registered, abstentions, null_votes, choice_a, choice_b, ratio, geometry
		FROM regional_results WHERE run_id = ? ORDER BY code_reg`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.FinalResult{}
	for rows.Next() {
		var r model.FinalResult
		var ratio sql.NullFloat64
		var geometry sql.NullString
		if err := rows.Scan(&r.CodeReg, &r.NameReg, &r.Registered, &r.Abstentions, &r.Null,
			&r.ChoiceA, &r.ChoiceB, &ratio, &geometry); err != nil {
			return nil, err
		}
		r.Ratio = model.Ratio{Value: ratio.Float64, Valid: ratio.Valid}
		if geometry.Valid {
			var g geom.T
			if err := geojson.Unmarshal([]byte(geometry.String), &g); err != nil {
				return nil, fmt.Errorf("decode geometry of region %s: %w", r.CodeReg, err)
			}
			r.Geometry = g
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRunResults removes the results and stage metrics of a run before it
// is executed again
func DeleteRunResults(runID string) error {
	for _, q := range []string{
		`DELETE FROM regional_results WHERE run_id = ?`,
		`DELETE FROM run_stages WHERE run_id = ?`,
	} {
		if _, err := db.Exec(q, runID); err != nil {
			return err
		}
	}
	return nil
}
