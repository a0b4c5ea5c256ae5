package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"referendum-pipeline/internal/model"
)

// AggregateByRegion sums the vote counts of merged records per region code.
// The region name is taken from the first record of each group.
func AggregateByRegion(merged []model.MergedRecord) map[string]model.RegionalResult {
	out := make(map[string]model.RegionalResult)
	for _, m := range merged {
		accumulate(out, m)
	}
	return out
}

func accumulate(acc map[string]model.RegionalResult, m model.MergedRecord) {
	r, ok := acc[m.CodeReg]
	if !ok {
		r = model.RegionalResult{CodeReg: m.CodeReg, NameReg: m.NameReg}
	}
	r.Registered += m.Registered
	r.Abstentions += m.Abstentions
	r.Null += m.Null
	r.ChoiceA += m.ChoiceA
	r.ChoiceB += m.ChoiceB
	acc[m.CodeReg] = r
}

// MaxAggregationWorkers caps the worker count a run may request.
const MaxAggregationWorkers = 64

// aggregationWorker owns a disjoint set of region keys.
type aggregationWorker struct {
	ID          int
	Results     map[string]model.RegionalResult
	RecordCount int
}

// AggregateByRegionParallel gives the same result as AggregateByRegion but
// spreads the regions over workers. Each region key is owned by exactly one
// worker, which visits that region's records in input order, so the
// first-record name rule still holds. The worker count is capped by
// MaxAggregationWorkers, GOMAXPROCS and the number of distinct regions.
func AggregateByRegionParallel(ctx context.Context, merged []model.MergedRecord, workers int) (map[string]model.RegionalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}
	workers = min(workers, MaxAggregationWorkers, runtime.GOMAXPROCS(0), distinctRegions(merged))
	if workers <= 1 {
		return AggregateByRegion(merged), nil
	}

	partitions := make([][]int, workers)
	for i, m := range merged {
		p := partitionOf(m.CodeReg, workers)
		partitions[p] = append(partitions[p], i)
	}

	pool := make([]*aggregationWorker, workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := range pool {
		w := &aggregationWorker{ID: i + 1, Results: make(map[string]model.RegionalResult)}
		pool[i] = w
		idx := partitions[i]
		g.Go(func() error {
			for n, j := range idx {
				if n%256 == 0 {
					if err := ctx.Err(); err != nil {
						return fmt.Errorf("aggregation worker %d: %w", w.ID, err)
					}
				}
				accumulate(w.Results, merged[j])
				w.RecordCount++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]model.RegionalResult)
	for _, w := range pool {
		for k, v := range w.Results {
			out[k] = v
		}
	}
	return out, nil
}

func distinctRegions(merged []model.MergedRecord) int {
	seen := make(map[string]struct{})
	for _, m := range merged {
		seen[m.CodeReg] = struct{}{}
	}
	return len(seen)
}

func partitionOf(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// SortedResults returns the regional results ordered by region code.
func SortedResults(results map[string]model.RegionalResult) []model.RegionalResult {
	out := make([]model.RegionalResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CodeReg < out[j].CodeReg })
	return out
}

// SortFinalResults sorts results in place by "ratio", "registered",
// "name_reg" or (default) "code_reg". Undefined ratios always sort last.
func SortFinalResults(results []model.FinalResult, sortBy string, ascending bool) []model.FinalResult {
	less := func(i, j int) bool { return results[i].CodeReg < results[j].CodeReg }

	switch strings.ToLower(sortBy) {
	case "ratio":
		less = func(i, j int) bool {
			ri, rj := results[i].Ratio, results[j].Ratio
			if ri.Valid != rj.Valid {
				return ri.Valid == ascending
			}
			return ri.Value < rj.Value
		}
	case "registered":
		less = func(i, j int) bool { return results[i].Registered < results[j].Registered }
	case "name_reg":
		less = func(i, j int) bool { return results[i].NameReg < results[j].NameReg }
	}

	sort.SliceStable(results, func(i, j int) bool {
		if ascending {
			return less(i, j)
		}
		return less(j, i)
	})
	return results
}
