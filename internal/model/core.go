package model

// Sources lists the four input tables of a run.
type Sources struct {
	Regions     string `json:"regions"`     // CSV: code,name
	Departments string `json:"departments"` // CSV: code,name,region_code
	Ballots     string `json:"ballots"`     // CSV (or .json) referendum rows
	Geometries  string `json:"geometries"`  // GeoJSON FeatureCollection
}

// Export defines export targets
type Export struct {
	DB        bool     `json:"db"`        // run store; Execute always writes it
	Files     []string `json:"files"`     // e.g. results.csv, results.json, map.geojson
	OutputDir string   `json:"outputDir"` // base dir, one sub dir per run
}

// RunSpec is the body of POST /api/v1/runs and the persisted run definition.
type RunSpec struct {
	Sources            Sources `json:"sources"`
	BallotSeparator    string  `json:"ballotSeparator,omitempty"` // default ";"
	Encoding           string  `json:"encoding,omitempty"`        // "utf-8" (default) or "latin1"
	Export             *Export `json:"export,omitempty"`
	AggregationWorkers int     `json:"aggregationWorkers,omitempty"`
	JobTimeout         string  `json:"jobTimeout,omitempty"` // e.g. "5m"
}

// Inputs holds the typed input tables of one pipeline run.
type Inputs struct {
	Regions     []RegionRecord
	Departments []DepartmentRecord
	Ballots     []BallotRecord
	Geometries  []GeometryRecord
}
