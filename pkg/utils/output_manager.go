package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager handles output file organization and path management
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// CreateRunOutputDir creates the directory holding one run's outputs
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	runDir := filepath.Join(om.BaseOutputDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return runDir, nil
}

// GetOutputFilePath generates a full path for an output file
func (om *OutputManager) GetOutputFilePath(runID, fileName string) (string, error) {
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}

	// Clean the filename to remove any path separators
	return filepath.Join(runDir, filepath.Base(fileName)), nil
}

// GetFileType determines the file type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".geojson":
		return "geojson"
	default:
		return "unknown"
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}
