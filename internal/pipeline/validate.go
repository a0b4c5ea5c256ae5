package pipeline

import (
	"strings"

	"referendum-pipeline/internal/model"
)

// Required fields of each input table.
var (
	regionFields     = []string{"code", "name"}
	departmentFields = []string{"code", "name", "region_code"}
	ballotFields     = []string{"Department code", "Registered", "Abstentions", "Null", "Choice A", "Choice B"}
)

// requireFields returns a KindSchema error listing every required field
// absent from present.
func requireFields(table string, present map[string]int, required []string) error {
	var missing []string
	for _, field := range required {
		if _, ok := present[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return newError(KindSchema, StageIngest, nil,
			"%s table is missing required field(s): %s", table, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateInputs checks tables that did not come through the loaders. It runs
// before any stage so that a bad input aborts the run without partial output.
func ValidateInputs(in model.Inputs) error {
	for i, b := range in.Ballots {
		counts := map[string]int64{
			"Registered":  b.Registered,
			"Abstentions": b.Abstentions,
			"Null":        b.Null,
			"Choice A":    b.ChoiceA,
			"Choice B":    b.ChoiceB,
		}
		for field, v := range counts {
			if v < 0 {
				return newError(KindInvalidCount, StageIngest, nil,
					"ballot row %d: %s is negative (%d)", i, field, v)
			}
		}
	}

	for i, g := range in.Geometries {
		if g.Geometry == nil {
			return newError(KindSchema, StageIngest, nil,
				"geometry row %d (region %q) is missing required field geometry", i, g.RegionCode)
		}
	}
	return nil
}
