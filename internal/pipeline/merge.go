package pipeline

import "referendum-pipeline/internal/model"

// FilterMetropolitan returns the rows of geo whose region is not one of the
// reserved DOM-TOM-COM region codes.
func FilterMetropolitan(geo []model.GeoDepartmentRecord) []model.GeoDepartmentRecord {
	out := make([]model.GeoDepartmentRecord, 0, len(geo))
	for _, g := range geo {
		if !model.IsReservedRegion(g.CodeReg) {
			out = append(out, g)
		}
	}
	return out
}

// MergeBallotsAndGeography inner-joins normalized ballots to the metropolitan
// part of the geography mapping on department code. Matching is exact and
// case-sensitive; unmatched rows on either side are dropped.
func MergeBallotsAndGeography(ballots []model.NormalizedBallotRecord, geo []model.GeoDepartmentRecord) []model.MergedRecord {
	out, _ := mergeBallotsAndGeography(ballots, geo)
	return out
}

func mergeBallotsAndGeography(ballots []model.NormalizedBallotRecord, geo []model.GeoDepartmentRecord) ([]model.MergedRecord, model.JoinStats) {
	stats := model.JoinStats{
		Stage:     StageMerge,
		LeftRows:  len(geo),
		RightRows: len(ballots),
	}

	metro := FilterMetropolitan(geo)
	stats.DroppedLeft = len(geo) - len(metro)

	byCode := make(map[string][]int)
	for i, b := range ballots {
		byCode[b.DepartmentCode] = append(byCode[b.DepartmentCode], i)
	}

	deps := make(map[string]bool, len(metro))
	out := make([]model.MergedRecord, 0, len(ballots))
	for _, g := range metro {
		deps[g.CodeDep] = true
		idx := byCode[g.CodeDep]
		if len(idx) == 0 {
			stats.DroppedLeft++
			continue
		}
		for _, i := range idx {
			out = append(out, model.MergedRecord{
				GeoDepartmentRecord:    g,
				NormalizedBallotRecord: ballots[i],
			})
		}
	}

	for _, b := range ballots {
		if !deps[b.DepartmentCode] {
			stats.DroppedRight++
		}
	}
	stats.OutputRows = len(out)
	return out, stats
}
