package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"referendum-pipeline/internal/model"
)

func merged(codeReg, nameReg string, registered, abstentions, null, a, b int64) model.MergedRecord {
	return model.MergedRecord{
		GeoDepartmentRecord: model.GeoDepartmentRecord{CodeReg: codeReg, NameReg: nameReg},
		NormalizedBallotRecord: model.NormalizedBallotRecord{
			Registered: registered, Abstentions: abstentions, Null: null, ChoiceA: a, ChoiceB: b,
		},
	}
}

func TestAggregateByRegion(t *testing.T) {
	in := []model.MergedRecord{
		merged("84", "Auvergne-Rhône-Alpes", 100, 20, 5, 50, 25),
		merged("94", "Corse", 40, 10, 0, 20, 10),
		merged("84", "ARA", 50, 10, 0, 10, 30),
	}

	got := AggregateByRegion(in)
	want := map[string]model.RegionalResult{
		"84": {CodeReg: "84", NameReg: "Auvergne-Rhône-Alpes", Registered: 150, Abstentions: 30, Null: 5, ChoiceA: 60, ChoiceB: 55},
		"94": {CodeReg: "94", NameReg: "Corse", Registered: 40, Abstentions: 10, ChoiceA: 20, ChoiceB: 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestAggregateConservesSums(t *testing.T) {
	var in []model.MergedRecord
	var registered, choiceA int64
	for i := 0; i < 1000; i++ {
		m := merged(fmt.Sprintf("%02d", i%13), "r", int64(i), 1, 1, int64(i%7), 3)
		registered += m.Registered
		choiceA += m.ChoiceA
		in = append(in, m)
	}

	var gotRegistered, gotA int64
	for _, r := range AggregateByRegion(in) {
		gotRegistered += r.Registered
		gotA += r.ChoiceA
	}
	if gotRegistered != registered || gotA != choiceA {
		t.Errorf("sums not conserved: registered %d/%d, choice A %d/%d", gotRegistered, registered, gotA, choiceA)
	}
}

func TestAggregateByRegionParallelMatchesSequential(t *testing.T) {
	var in []model.MergedRecord
	for i := 0; i < 5000; i++ {
		code := fmt.Sprintf("%02d", i%17)
		in = append(in, merged(code, fmt.Sprintf("name-%s-%d", code, i), int64(i%100), 1, 2, int64(i%11), int64(i%5)))
	}
	want := AggregateByRegion(in)

	for _, workers := range []int{0, 1, 2, 4, 8, 32} {
		got, err := AggregateByRegionParallel(context.Background(), in, workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("workers=%d: parallel result differs from sequential", workers)
		}
	}
}

func TestAggregateByRegionParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := []model.MergedRecord{merged("84", "ARA", 1, 0, 0, 1, 0)}
	_, err := AggregateByRegionParallel(ctx, in, 4)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSortedResults(t *testing.T) {
	got := SortedResults(map[string]model.RegionalResult{
		"94": {CodeReg: "94"}, "11": {CodeReg: "11"}, "53": {CodeReg: "53"},
	})
	for i, want := range []string{"11", "53", "94"} {
		if got[i].CodeReg != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].CodeReg)
		}
	}
}

func TestSortFinalResults(t *testing.T) {
	build := func() []model.FinalResult {
		return []model.FinalResult{
			{RegionalResult: model.RegionalResult{CodeReg: "94", NameReg: "Corse", Registered: 10}, Ratio: model.Ratio{Value: 0.2, Valid: true}},
			{RegionalResult: model.RegionalResult{CodeReg: "11", NameReg: "Île-de-France", Registered: 30}},
			{RegionalResult: model.RegionalResult{CodeReg: "53", NameReg: "Bretagne", Registered: 20}, Ratio: model.Ratio{Value: 0.6, Valid: true}},
		}
	}
	codes := func(rs []model.FinalResult) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.CodeReg
		}
		return out
	}

	tests := []struct {
		sortBy    string
		ascending bool
		want      []string
	}{
		{"", true, []string{"11", "53", "94"}},
		{"code_reg", false, []string{"94", "53", "11"}},
		{"ratio", true, []string{"94", "53", "11"}},
		{"ratio", false, []string{"53", "94", "11"}},
		{"registered", true, []string{"94", "53", "11"}},
		{"NAME_REG", true, []string{"53", "94", "11"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.sortBy, tt.ascending), func(t *testing.T) {
			got := codes(SortFinalResults(build(), tt.sortBy, tt.ascending))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeRatio(t *testing.T) {
	r := ComputeRatio(model.RegionalResult{Registered: 100, Abstentions: 20, Null: 5, ChoiceA: 50, ChoiceB: 25})
	if !r.Valid || math.Abs(r.Value-50.0/75.0) > 1e-12 {
		t.Errorf("expected 50/75, got %+v", r)
	}

	r = ComputeRatio(model.RegionalResult{Registered: 10, Abstentions: 5, Null: 5})
	if r.Valid {
		t.Errorf("expected undefined ratio, got %v", r.Value)
	}
	if !math.IsNaN(r.Float()) {
		t.Errorf("expected NaN, got %v", r.Float())
	}
}

func TestAggregateByRegionParallelHugeWorkerCount(t *testing.T) {
	in := []model.MergedRecord{
		merged("84", "ARA", 100, 20, 5, 50, 25),
		merged("94", "Corse", 40, 10, 0, 20, 10),
	}
	got, err := AggregateByRegionParallel(context.Background(), in, 1<<40)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, AggregateByRegion(in)) {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestDistinctRegions(t *testing.T) {
	in := []model.MergedRecord{merged("84", "", 0, 0, 0, 0, 0), merged("94", "", 0, 0, 0, 0, 0), merged("84", "", 0, 0, 0, 0, 0)}
	if n := distinctRegions(in); n != 2 {
		t.Errorf("expected 2 regions, got %d", n)
	}
}
