package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"referendum-pipeline/internal/model"
	"referendum-pipeline/pkg/utils"
)

// ------------------- Ingestion -------------------

// LoadInputs reads the four input tables named by spec from disk. A missing
// required field in any table aborts the load with a KindSchema error.
func LoadInputs(ctx context.Context, spec model.RunSpec) (model.Inputs, error) {
	var in model.Inputs
	var err error

	sep, err := separator(spec.BallotSeparator)
	if err != nil {
		return in, err
	}

	if in.Regions, err = loadFile(ctx, spec.Sources.Regions, spec.Encoding, LoadRegions); err != nil {
		return in, err
	}
	if in.Departments, err = loadFile(ctx, spec.Sources.Departments, spec.Encoding, LoadDepartments); err != nil {
		return in, err
	}

	loadBallots := func(r io.Reader) ([]model.BallotRecord, error) { return LoadBallots(r, sep) }
	if strings.EqualFold(filepath.Ext(spec.Sources.Ballots), ".json") {
		loadBallots = LoadBallotsJSON
	}
	if in.Ballots, err = loadFile(ctx, spec.Sources.Ballots, spec.Encoding, loadBallots); err != nil {
		return in, err
	}

	// GeoJSON is UTF-8 by definition
	if in.Geometries, err = loadFile(ctx, spec.Sources.Geometries, "", LoadGeometries); err != nil {
		return in, err
	}
	return in, nil
}

func loadFile[T any](ctx context.Context, path, encoding string, load func(io.Reader) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIO, StageIngest, err, "failed to open %s", path)
	}
	defer file.Close()

	reader, err := decodeText(file, encoding)
	if err != nil {
		return nil, err
	}

	rows, err := load(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fmt.Printf("📄 Loaded %d records from %s\n", len(rows), path)
	return rows, nil
}

func decodeText(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, newError(KindIO, StageIngest, nil, "unsupported text encoding %q", encoding)
	}
}

func separator(s string) (rune, error) {
	if s == "" {
		return ';', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError {
		return 0, newError(KindIO, StageIngest, nil, "ballot separator must be a single character, got %q", s)
	}
	return r, nil
}

// ------------------- CSV Tables -------------------

type csvTable struct {
	header map[string]int
	rows   [][]string
}

func (t csvTable) field(row []string, name string) string {
	i, ok := t.header[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readCSV(r io.Reader, comma rune, table string) (csvTable, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comma = comma
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return csvTable{}, newError(KindSchema, StageIngest, nil, "%s table has no header", table)
	}
	if err != nil {
		return csvTable{}, newError(KindIO, StageIngest, err, "failed to read %s header", table)
	}

	t := csvTable{header: make(map[string]int, len(headers))}
	for i, h := range headers {
		t.header[utils.CleanHeader(h)] = i
	}

	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return csvTable{}, newError(KindIO, StageIngest, err, "%s CSV read error", table)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func cleanName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// LoadRegions reads the region reference table (code,name; other columns ignored).
func LoadRegions(r io.Reader) ([]model.RegionRecord, error) {
	t, err := readCSV(r, ',', "regions")
	if err != nil {
		return nil, err
	}
	if err := requireFields("regions", t.header, regionFields); err != nil {
		return nil, err
	}

	out := make([]model.RegionRecord, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, model.RegionRecord{
			Code: t.field(row, "code"),
			Name: cleanName(t.field(row, "name")),
		})
	}
	return out, nil
}

// LoadDepartments reads the department reference table.
func LoadDepartments(r io.Reader) ([]model.DepartmentRecord, error) {
	t, err := readCSV(r, ',', "departments")
	if err != nil {
		return nil, err
	}
	if err := requireFields("departments", t.header, departmentFields); err != nil {
		return nil, err
	}

	out := make([]model.DepartmentRecord, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, model.DepartmentRecord{
			Code:       t.field(row, "code"),
			Name:       cleanName(t.field(row, "name")),
			RegionCode: t.field(row, "region_code"),
		})
	}
	return out, nil
}

// LoadBallots reads the referendum table. Cells are trimmed, department code
// included, so " 1" normalizes to "01". An empty department code cell is
// kept as a null code.
func LoadBallots(r io.Reader, comma rune) ([]model.BallotRecord, error) {
	t, err := readCSV(r, comma, "ballots")
	if err != nil {
		return nil, err
	}
	if err := requireFields("ballots", t.header, ballotFields); err != nil {
		return nil, err
	}

	out := make([]model.BallotRecord, 0, len(t.rows))
	for i, row := range t.rows {
		code := model.NullCode()
		if c := t.field(row, "Department code"); c != "" {
			code = model.TextCode(c)
		}

		b := model.BallotRecord{
			DepartmentCode: code,
			DepartmentName: cleanName(t.field(row, "Department name")),
			TownCode:       t.field(row, "Town code"),
			TownName:       cleanName(t.field(row, "Town name")),
		}
		counts := []struct {
			field string
			dst   *int64
		}{
			{"Registered", &b.Registered},
			{"Abstentions", &b.Abstentions},
			{"Null", &b.Null},
			{"Choice A", &b.ChoiceA},
			{"Choice B", &b.ChoiceB},
		}
		for _, c := range counts {
			n, err := utils.ParseCount(t.field(row, c.field))
			if err != nil {
				return nil, newError(KindInvalidCount, StageIngest, err, "ballot row %d: %s", i+1, c.field)
			}
			*c.dst = n
		}
		out = append(out, b)
	}
	return out, nil
}

// ------------------- JSON Ballots -------------------

// LoadBallotsJSON reads ballots from a JSON array of objects keyed like the
// CSV header. Department codes keep their JSON type, so a numeric code is
// rejected later by the normalizer instead of being coerced here.
func LoadBallotsJSON(r io.Reader) ([]model.BallotRecord, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, newError(KindIO, StageIngest, err, "failed to decode ballots JSON")
	}

	out := make([]model.BallotRecord, 0, len(raw))
	for i, item := range raw {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(item, &keys); err != nil {
			return nil, newError(KindIO, StageIngest, err, "ballot %d is not an object", i)
		}
		present := make(map[string]int, len(keys))
		for k := range keys {
			present[k] = 0
		}
		if err := requireFields("ballots", present, ballotFields); err != nil {
			return nil, err
		}

		var b model.BallotRecord
		if err := json.Unmarshal(item, &b); err != nil {
			return nil, newError(KindInvalidCount, StageIngest, err, "ballot %d", i)
		}
		if b.Registered < 0 || b.Abstentions < 0 || b.Null < 0 || b.ChoiceA < 0 || b.ChoiceB < 0 {
			return nil, newError(KindInvalidCount, StageIngest, nil, "ballot %d has a negative count", i)
		}
		b.DepartmentName = cleanName(b.DepartmentName)
		b.TownName = cleanName(b.TownName)
		out = append(out, b)
	}
	return out, nil
}

// ------------------- GeoJSON Geometries -------------------

// LoadGeometries reads region outlines from a GeoJSON FeatureCollection whose
// features carry the region code in the "code" property.
func LoadGeometries(r io.Reader) ([]model.GeometryRecord, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, newError(KindIO, StageIngest, err, "failed to decode GeoJSON")
	}

	out := make([]model.GeometryRecord, 0, len(fc.Features))
	for i, f := range fc.Features {
		code, ok := f.Properties["code"].(string)
		if !ok {
			return nil, newError(KindSchema, StageIngest, nil,
				"geometry feature %d is missing required property code", i)
		}
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		case nil:
			return nil, newError(KindSchema, StageIngest, nil,
				"geometry feature %d (region %s) is missing required field geometry", i, code)
		default:
			return nil, newError(KindSchema, StageIngest, nil,
				"geometry feature %d (region %s) has unsupported type %T", i, code, f.Geometry)
		}

		name, _ := f.Properties["nom"].(string)
		out = append(out, model.GeometryRecord{
			RegionCode: code,
			Name:       cleanName(name),
			Geometry:   f.Geometry,
		})
	}
	return out, nil
}
