package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding/charmap"

	"referendum-pipeline/internal/model"
)

func TestLoadRegions(t *testing.T) {
	in := "\ufeff\"code\",\"name\",\"chef_lieu\"\n84,Auvergne-Rhône-Alpes,69123\n 94 , Corse ,2A004\n"
	got, err := LoadRegions(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []model.RegionRecord{{Code: "84", Name: "Auvergne-Rhône-Alpes"}, {Code: "94", Name: "Corse"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadRegionsNormalizesNames(t *testing.T) {
	// "Île" written with a combining circumflex
	got, err := LoadRegions(strings.NewReader("code,name\n11,I\u0302le-de-France\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Name != "\u00cele-de-France" {
		t.Errorf("expected NFC name, got %q", got[0].Name)
	}
}

func TestLoadMissingFields(t *testing.T) {
	tests := []struct {
		name string
		load func() error
	}{
		{"regions", func() error {
			_, err := LoadRegions(strings.NewReader("code,label\n84,ARA\n"))
			return err
		}},
		{"departments", func() error {
			_, err := LoadDepartments(strings.NewReader("code,name\n01,Ain\n"))
			return err
		}},
		{"ballots", func() error {
			_, err := LoadBallots(strings.NewReader("Department code;Registered\n1;100\n"), ';')
			return err
		}},
		{"empty", func() error {
			_, err := LoadRegions(strings.NewReader(""))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.load(); !errors.Is(err, ErrSchema) {
				t.Errorf("expected ErrSchema, got %v", err)
			}
		})
	}
}

func TestLoadMissingFieldsListsThem(t *testing.T) {
	_, err := LoadDepartments(strings.NewReader("code\n01\n"))
	if err == nil || !strings.Contains(err.Error(), "name, region_code") {
		t.Errorf("expected both missing fields in %v", err)
	}
}

func TestLoadBallots(t *testing.T) {
	in := "Department code;Department name;Town code;Town name;Registered;Abstentions;Null;Choice A;Choice B\n" +
		"1;AIN;1;Ambérieu;1 250;20;5;50;25\n" +
		";INCONNU;2;Nulle part;10;0;0;5;5\n"

	got, err := LoadBallots(strings.NewReader(in), ';')
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ballots, got %d", len(got))
	}
	if code, ok := got[0].DepartmentCode.Text(); !ok || code != "1" {
		t.Errorf("expected textual code 1, got %v", got[0].DepartmentCode)
	}
	if got[0].Registered != 1250 || got[0].ChoiceB != 25 {
		t.Errorf("unexpected counts: %+v", got[0])
	}
	if !got[1].DepartmentCode.IsNull() {
		t.Errorf("expected an empty code cell to load as null, got %v", got[1].DepartmentCode)
	}
}

func TestLoadBallotsTrimsDepartmentCode(t *testing.T) {
	in := "Department code;Registered;Abstentions;Null;Choice A;Choice B\n 1 ;10;0;0;5;5\n"
	got, err := LoadBallots(strings.NewReader(in), ';')
	if err != nil {
		t.Fatal(err)
	}
	normalized, err := NormalizeBallots(got)
	if err != nil {
		t.Fatal(err)
	}
	if normalized[0].DepartmentCode != "01" {
		t.Errorf("expected trimmed code to normalize to 01, got %q", normalized[0].DepartmentCode)
	}
}

func TestLoadBallotsInvalidCount(t *testing.T) {
	for _, v := range []string{"-3", "abc", "", "1.5"} {
		in := "Department code;Registered;Abstentions;Null;Choice A;Choice B\n1;100;" + v + ";0;1;1\n"
		_, err := LoadBallots(strings.NewReader(in), ';')
		if !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Abstentions=%q: expected ErrInvalidCount, got %v", v, err)
		}
	}
}

func TestLoadBallotsJSON(t *testing.T) {
	in := `[
		{"Department code": "1", "Registered": 100, "Abstentions": 20, "Null": 5, "Choice A": 50, "Choice B": 25},
		{"Department code": 7, "Registered": 1, "Abstentions": 0, "Null": 0, "Choice A": 1, "Choice B": 0},
		{"Department code": null, "Registered": 1, "Abstentions": 0, "Null": 0, "Choice A": 1, "Choice B": 0}
	]`
	got, err := LoadBallotsJSON(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if code, ok := got[0].DepartmentCode.Text(); !ok || code != "1" {
		t.Errorf("expected textual code, got %v", got[0].DepartmentCode)
	}
	if _, ok := got[1].DepartmentCode.Text(); ok || got[1].DepartmentCode.IsNull() {
		t.Errorf("expected a numeric code to stay non-textual, got %v", got[1].DepartmentCode)
	}
	if !got[2].DepartmentCode.IsNull() {
		t.Errorf("expected null code, got %v", got[2].DepartmentCode)
	}

	// the numeric code fails normalization
	if _, err := NormalizeBallots(got); !errors.Is(err, ErrMalformedCode) {
		t.Errorf("expected ErrMalformedCode, got %v", err)
	}
}

func TestLoadBallotsJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"missing field", `[{"Department code": "1", "Registered": 1}]`, ErrSchema},
		{"negative", `[{"Department code": "1", "Registered": 1, "Abstentions": -1, "Null": 0, "Choice A": 0, "Choice B": 0}]`, ErrInvalidCount},
		{"fraction", `[{"Department code": "1", "Registered": 1.5, "Abstentions": 0, "Null": 0, "Choice A": 0, "Choice B": 0}]`, ErrInvalidCount},
		{"not json", `{`, ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadBallotsJSON(strings.NewReader(tt.in)); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadGeometries(t *testing.T) {
	got, err := LoadGeometries(strings.NewReader(geometryJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 geometries, got %d", len(got))
	}
	if got[0].RegionCode != "84" || got[0].Name != "Auvergne-Rhône-Alpes" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if _, ok := got[0].Geometry.(*geom.Polygon); !ok {
		t.Errorf("expected *geom.Polygon, got %T", got[0].Geometry)
	}
	if _, ok := got[1].Geometry.(*geom.MultiPolygon); !ok {
		t.Errorf("expected *geom.MultiPolygon, got %T", got[1].Geometry)
	}
}

func TestLoadGeometriesSchemaErrors(t *testing.T) {
	tests := map[string]string{
		"no code":     `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nom":"x"},"geometry":{"type":"Point","coordinates":[0,0]}}]}`,
		"no geometry": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"code":"84"},"geometry":null}]}`,
		"point":       `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"code":"84"},"geometry":{"type":"Point","coordinates":[0,0]}}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadGeometries(strings.NewReader(in)); !errors.Is(err, ErrSchema) {
				t.Errorf("expected ErrSchema, got %v", err)
			}
		})
	}
}

func TestLoadInputsLatin1(t *testing.T) {
	dir := t.TempDir()
	sources := writeSources(t)

	latin1, err := charmap.ISO8859_1.NewEncoder().String(ballotsCSV)
	if err != nil {
		t.Fatal(err)
	}
	sources.Ballots = writeFile(t, dir, "referendum.csv", latin1)

		in, err := LoadInputs(context.Background(), model.RunSpec{Sources: sources, Encoding: "latin1"})
	if err != nil {
		t.Fatal(err)
	}
	if in.Ballots[0].TownName != "L'Abergement-Clémenciat" {
		t.Errorf("expected decoded town name, got %q", in.Ballots[0].TownName)
	}
}

func TestLoadInputsJSONBallots(t *testing.T) {
	sources := writeSources(t)
	sources.Ballots = writeFile(t, t.TempDir(), "ballots.JSON",
		`[{"Department code": "2A", "Registered": 40, "Abstentions": 10, "Null": 0, "Choice A": 20, "Choice B": 10}]`)

	in, err := LoadInputs(context.Background(), model.RunSpec{Sources: sources})
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Ballots) != 1 || in.Ballots[0].Registered != 40 {
		t.Errorf("unexpected ballots: %+v", in.Ballots)
	}
}

func TestLoadInputsErrors(t *testing.T) {
	sources := writeSources(t)

	if _, err := LoadInputs(context.Background(), model.RunSpec{Sources: sources, BallotSeparator: ";;"}); !errors.Is(err, ErrIO) {
		t.Errorf("bad separator: expected ErrIO, got %v", err)
	}
	if _, err := LoadInputs(context.Background(), model.RunSpec{Sources: sources, Encoding: "ebcdic"}); !errors.Is(err, ErrIO) {
		t.Errorf("bad encoding: expected ErrIO, got %v", err)
	}

	missing := sources
	missing.Geometries = filepath.Join(t.TempDir(), "none.geojson")
	if _, err := LoadInputs(context.Background(), model.RunSpec{Sources: missing}); !errors.Is(err, ErrIO) {
		t.Errorf("missing file: expected ErrIO, got %v", err)
	}
}

func TestDecodeTextWindows1252(t *testing.T) {
	// 0x80 is the euro sign in windows-1252
	r, err := decodeText(bytes.NewReader([]byte{0x80}), "cp1252")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "€" {
		t.Errorf("expected €, got %q", buf.String())
	}
}
