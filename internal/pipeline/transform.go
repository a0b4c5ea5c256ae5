package pipeline

import (
	"strings"
	"unicode/utf8"

	"referendum-pipeline/internal/model"
)

// codeWidth is the canonical width of a metropolitan department code.
const codeWidth = 2

// NormalizeBallots drops foreign-resident ballots and rewrites the remaining
// department codes to their canonical form.
//
// Filtering runs first and sees the original codes: a record is dropped when
// its code contains "Z". A null code does not contain "Z" and passes the
// filter, but like any non-textual code it then fails normalization with a
// KindMalformedCode error. The whole stage fails on the first such record.
func NormalizeBallots(ballots []model.BallotRecord) ([]model.NormalizedBallotRecord, error) {
	out, _, err := normalizeBallots(ballots)
	return out, err
}

func normalizeBallots(ballots []model.BallotRecord) ([]model.NormalizedBallotRecord, model.JoinStats, error) {
	stats := model.JoinStats{Stage: StageNormalize, LeftRows: len(ballots)}
	out := make([]model.NormalizedBallotRecord, 0, len(ballots))

	for i, b := range ballots {
		if isForeignResident(b.DepartmentCode) {
			stats.DroppedLeft++
			continue
		}

		code, ok := b.DepartmentCode.Text()
		if !ok {
			if b.DepartmentCode.IsNull() {
				return nil, stats, newError(KindMalformedCode, StageNormalize, nil,
					"ballot row %d: department code is null", i)
			}
			return nil, stats, newError(KindMalformedCode, StageNormalize, nil,
				"ballot row %d: department code %v is %T, want text", i, b.DepartmentCode.Raw(), b.DepartmentCode.Raw())
		}

		out = append(out, model.NormalizedBallotRecord{
			DepartmentCode: NormalizeCode(code),
			DepartmentName: b.DepartmentName,
			TownCode:       b.TownCode,
			TownName:       b.TownName,
			Registered:     b.Registered,
			Abstentions:    b.Abstentions,
			Null:           b.Null,
			ChoiceA:        b.ChoiceA,
			ChoiceB:        b.ChoiceB,
		})
	}

	stats.OutputRows = len(out)
	return out, stats, nil
}

// NormalizeCode left-pads a department code with zeros to two characters.
// The Corsican codes 2A and 2B are returned unchanged.
func NormalizeCode(code string) string {
	if code == model.CorsicaSouth || code == model.CorsicaNorth {
		return code
	}
	if n := utf8.RuneCountInString(code); n < codeWidth {
		return strings.Repeat("0", codeWidth-n) + code
	}
	return code
}

func isForeignResident(code model.DepartmentCode) bool {
	s, ok := code.Text()
	return ok && strings.Contains(s, model.ForeignResidentMarker)
}
