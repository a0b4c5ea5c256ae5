package model

import "time"

// JoinStats counts rows entering and leaving one join or filter stage.
// Dropped rows are not errors; the counts make silent data loss visible.
type JoinStats struct {
	Stage        string `json:"stage"`
	LeftRows     int    `json:"left_rows"`
	RightRows    int    `json:"right_rows"`
	OutputRows   int    `json:"output_rows"`
	DroppedLeft  int    `json:"dropped_left"`
	DroppedRight int    `json:"dropped_right"`
}

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName  string        `json:"stage_name"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	RowsIn     int           `json:"rows_in"`
	RowsOut    int           `json:"rows_out"`
	Status     string        `json:"status"` // "running", "completed", "failed"
	Join       *JoinStats    `json:"join,omitempty"`
	ErrorCount int           `json:"error_count"`
}

// RunMetrics represents overall pipeline performance metrics
type RunMetrics struct {
	RunID     string         `json:"run_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Duration  time.Duration  `json:"duration"`
	Status    string         `json:"status"`
	Stages    []StageMetrics `json:"stages"`
}
