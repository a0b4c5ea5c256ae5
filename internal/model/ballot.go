package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ForeignResidentMarker flags ballots cast by French citizens living abroad.
const ForeignResidentMarker = "Z"

// Corsican department codes are alphanumeric and never zero-padded.
const (
	CorsicaSouth = "2A"
	CorsicaNorth = "2B"
)

type codeKind int

const (
	codeNull codeKind = iota
	codeText
	codeOther
)

// DepartmentCode is a ballot department code as it arrived from the source.
// It can be textual, null (empty cell), or a non-textual value such as a
// JSON number, which the normalizer rejects.
type DepartmentCode struct {
	kind codeKind
	text string
	raw  any
}

// TextCode returns a textual department code.
func TextCode(s string) DepartmentCode {
	return DepartmentCode{kind: codeText, text: s}
}

// NullCode returns a missing department code.
func NullCode() DepartmentCode {
	return DepartmentCode{kind: codeNull}
}

// RawCode wraps a decoded source value. Strings become textual codes and nil
// becomes a null code; anything else is kept as a non-textual value.
func RawCode(v any) DepartmentCode {
	switch val := v.(type) {
	case nil:
		return NullCode()
	case string:
		return TextCode(val)
	default:
		return DepartmentCode{kind: codeOther, raw: val}
	}
}

// Text returns the code and true when the code is textual.
func (c DepartmentCode) Text() (string, bool) {
	return c.text, c.kind == codeText
}

// IsNull reports whether the code was missing from the source.
func (c DepartmentCode) IsNull() bool { return c.kind == codeNull }

// Raw returns the original source value for non-textual codes.
func (c DepartmentCode) Raw() any { return c.raw }

func (c DepartmentCode) String() string {
	switch c.kind {
	case codeText:
		return c.text
	case codeOther:
		return fmt.Sprintf("%v", c.raw)
	default:
		return "<null>"
	}
}

// MarshalJSON encodes the code back to its source representation.
func (c DepartmentCode) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case codeText:
		return json.Marshal(c.text)
	case codeOther:
		return json.Marshal(c.raw)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON keeps non-string values instead of coercing them.
func (c *DepartmentCode) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = NullCode()
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = RawCode(v)
	return nil
}

// BallotRecord is one raw row of the referendum table (one per town).
type BallotRecord struct {
	DepartmentCode DepartmentCode `json:"Department code"`
	DepartmentName string         `json:"Department name,omitempty"`
	TownCode       string         `json:"Town code,omitempty"`
	TownName       string         `json:"Town name,omitempty"`
	Registered     int64          `json:"Registered"`
	Abstentions    int64          `json:"Abstentions"`
	Null           int64          `json:"Null"`
	ChoiceA        int64          `json:"Choice A"`
	ChoiceB        int64          `json:"Choice B"`
}

// NormalizedBallotRecord is a BallotRecord whose department code has been
// filtered and rewritten to its canonical form.
type NormalizedBallotRecord struct {
	DepartmentCode string `json:"department_code"`
	DepartmentName string `json:"department_name,omitempty"`
	TownCode       string `json:"town_code,omitempty"`
	TownName       string `json:"town_name,omitempty"`
	Registered     int64  `json:"registered"`
	Abstentions    int64  `json:"abstentions"`
	Null           int64  `json:"null"`
	ChoiceA        int64  `json:"choice_a"`
	ChoiceB        int64  `json:"choice_b"`
}

// MergedRecord is a normalized ballot joined to its region and department.
type MergedRecord struct {
	GeoDepartmentRecord
	NormalizedBallotRecord
}
