package pipeline

import "referendum-pipeline/internal/model"

// JoinGeography inner-joins departments to their region and returns the flat
// region/department mapping. Departments whose region code matches no region
// are dropped without error.
func JoinGeography(regions []model.RegionRecord, departments []model.DepartmentRecord) []model.GeoDepartmentRecord {
	out, _ := joinGeography(regions, departments)
	return out
}

func joinGeography(regions []model.RegionRecord, departments []model.DepartmentRecord) ([]model.GeoDepartmentRecord, model.JoinStats) {
	stats := model.JoinStats{
		Stage:     StageGeography,
		LeftRows:  len(regions),
		RightRows: len(departments),
	}

	byRegion := make(map[string][]int, len(regions))
	for i, d := range departments {
		byRegion[d.RegionCode] = append(byRegion[d.RegionCode], i)
	}

	known := make(map[string]bool, len(regions))
	out := make([]model.GeoDepartmentRecord, 0, len(departments))
	for _, r := range regions {
		known[r.Code] = true
		idx := byRegion[r.Code]
		if len(idx) == 0 {
			stats.DroppedLeft++
			continue
		}
		for _, i := range idx {
			d := departments[i]
			out = append(out, model.GeoDepartmentRecord{
				CodeReg: r.Code,
				NameReg: r.Name,
				CodeDep: d.Code,
				NameDep: d.Name,
			})
		}
	}

	for _, d := range departments {
		if !known[d.RegionCode] {
			stats.DroppedRight++
		}
	}
	stats.OutputRows = len(out)
	return out, stats
}
