package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/twpayne/go-geom"
)

// RegionalResult holds the summed vote counts of one region.
type RegionalResult struct {
	CodeReg     string `json:"code_reg"`
	NameReg     string `json:"name_reg"`
	Registered  int64  `json:"registered"`
	Abstentions int64  `json:"abstentions"`
	Null        int64  `json:"null"`
	ChoiceA     int64  `json:"choice_a"`
	ChoiceB     int64  `json:"choice_b"`
}

// Expressed returns the number of ballots that were neither abstentions nor null.
func (r RegionalResult) Expressed() int64 {
	return r.Registered - r.Abstentions - r.Null
}

// Ratio is an optional float: Valid is false when the ratio is undefined.
type Ratio struct {
	Value float64
	Valid bool
}

// RatioOf returns num/den, or an invalid Ratio when den is zero.
func RatioOf(num, den int64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: float64(num) / float64(den), Valid: true}
}

// Float returns the ratio, or NaN when it is undefined.
func (r Ratio) Float() float64 {
	if !r.Valid {
		return math.NaN()
	}
	return r.Value
}

// String formats the ratio; an undefined ratio is the empty string.
func (r Ratio) String() string {
	if !r.Valid {
		return ""
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	if err := json.Unmarshal(b, &r.Value); err != nil {
		return err
	}
	r.Valid = true
	return nil
}

// FinalResult is a regional result joined to its geometry, ready to render.
type FinalResult struct {
	RegionalResult
	Geometry geom.T `json:"-"`
	Ratio    Ratio  `json:"ratio"`
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "file", "database"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
