package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"referendum-pipeline/internal/model"
	"referendum-pipeline/internal/pipeline"
)

// Config holds the settings shared by the CLI and the API server.
type Config struct {
	RegionsPath     string        `env:"REFERENDUM_REGIONS_PATH" envDefault:"data/regions.csv"`
	DepartmentsPath string        `env:"REFERENDUM_DEPARTMENTS_PATH" envDefault:"data/departments.csv"`
	BallotsPath     string        `env:"REFERENDUM_BALLOTS_PATH" envDefault:"data/referendum.csv"`
	GeometryPath    string        `env:"REFERENDUM_GEOMETRY_PATH" envDefault:"data/regions.geojson"`
	BallotSeparator string        `env:"REFERENDUM_BALLOT_SEPARATOR" envDefault:";"`
	Encoding        string        `env:"REFERENDUM_ENCODING" envDefault:"utf-8"`
	DBPath          string        `env:"REFERENDUM_DB_PATH" envDefault:"referendum.db"`
	OutputDir       string        `env:"REFERENDUM_OUTPUT_DIR" envDefault:"exports"`
	ExportFiles     []string      `env:"REFERENDUM_EXPORT_FILES" envSeparator:"," envDefault:"results.csv,results.json,map.geojson"`
	Addr            string        `env:"REFERENDUM_ADDR" envDefault:":8080"`
	Workers         int           `env:"REFERENDUM_AGGREGATION_WORKERS" envDefault:"1"`
	JobTimeout      time.Duration `env:"REFERENDUM_JOB_TIMEOUT" envDefault:"5m"`
	OTelEndpoint    string        `env:"REFERENDUM_OTEL_ENDPOINT"`
}

// Load reads an optional .env file, then the environment, then args. Flags
// override environment variables.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	flags := flag.NewFlagSet("referendum", flag.ContinueOnError)
	flags.StringVar(&cfg.RegionsPath, "regions", cfg.RegionsPath, "Region CSV (code,name)")
	flags.StringVar(&cfg.DepartmentsPath, "departments", cfg.DepartmentsPath, "Department CSV (code,name,region_code)")
	flags.StringVar(&cfg.BallotsPath, "ballots", cfg.BallotsPath, "Referendum ballots CSV or JSON")
	flags.StringVar(&cfg.GeometryPath, "geometry", cfg.GeometryPath, "Region GeoJSON")
	flags.StringVar(&cfg.BallotSeparator, "sep", cfg.BallotSeparator, "Ballot CSV separator")
	flags.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "Input text encoding (utf-8, latin1)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flags.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Export directory")
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "API listen address")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Aggregation workers")
	flags.DurationVar(&cfg.JobTimeout, "timeout", cfg.JobTimeout, "Run timeout")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Workers < 1 || cfg.Workers > pipeline.MaxAggregationWorkers {
		return Config{}, fmt.Errorf("workers must be between 1 and %d", pipeline.MaxAggregationWorkers)
	}
	return cfg, nil
}

// RunSpec builds the run definition described by the configuration.
func (c Config) RunSpec() model.RunSpec {
	return model.RunSpec{
		Sources: model.Sources{
			Regions:     c.RegionsPath,
			Departments: c.DepartmentsPath,
			Ballots:     c.BallotsPath,
			Geometries:  c.GeometryPath,
		},
		BallotSeparator:    c.BallotSeparator,
		Encoding:           c.Encoding,
		AggregationWorkers: c.Workers,
		JobTimeout:         c.JobTimeout.String(),
		Export: &model.Export{
			DB:        true,
			Files:     c.ExportFiles,
			OutputDir: c.OutputDir,
		},
	}
}
