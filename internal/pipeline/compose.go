package pipeline

import "referendum-pipeline/internal/model"

// ComposeWithGeometry inner-joins regional results to region geometries and
// computes the Choice A ratio of each region. Rows come out in geometry order.
func ComposeWithGeometry(results map[string]model.RegionalResult, geometries []model.GeometryRecord) []model.FinalResult {
	out, _ := composeWithGeometry(results, geometries)
	return out
}

func composeWithGeometry(results map[string]model.RegionalResult, geometries []model.GeometryRecord) ([]model.FinalResult, model.JoinStats) {
	stats := model.JoinStats{
		Stage:     StageCompose,
		LeftRows:  len(geometries),
		RightRows: len(results),
	}

	out := make([]model.FinalResult, 0, len(results))
	matched := make(map[string]bool, len(results))
	for _, g := range geometries {
		r, ok := results[g.RegionCode]
		if !ok {
			stats.DroppedLeft++
			continue
		}
		matched[g.RegionCode] = true
		out = append(out, model.FinalResult{
			RegionalResult: r,
			Geometry:       g.Geometry,
			Ratio:          ComputeRatio(r),
		})
	}

	stats.DroppedRight = len(results) - len(matched)
	stats.OutputRows = len(out)
	return out, stats
}

// ComputeRatio returns ChoiceA over expressed ballots. The ratio is invalid
// when no ballot was expressed.
func ComputeRatio(r model.RegionalResult) model.Ratio {
	return model.RatioOf(r.ChoiceA, r.Expressed())
}
