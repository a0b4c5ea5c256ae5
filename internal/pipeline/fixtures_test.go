package pipeline

import (
	"github.com/twpayne/go-geom"

	"referendum-pipeline/internal/model"
)

func square(x, y float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}},
	})
}

func ballot(code string, registered, abstentions, null, a, b int64) model.BallotRecord {
	return model.BallotRecord{
		DepartmentCode: model.TextCode(code),
		Registered:     registered,
		Abstentions:    abstentions,
		Null:           null,
		ChoiceA:        a,
		ChoiceB:        b,
	}
}

// sampleInputs covers a padded code, Corsica, a foreign-resident code, an
// overseas region and a department without a region.
func sampleInputs() model.Inputs {
	return model.Inputs{
		Regions: []model.RegionRecord{
			{Code: "84", Name: "Auvergne-Rhône-Alpes"},
			{Code: "94", Name: "Corse"},
			{Code: "01", Name: "Guadeloupe"},
			{Code: "53", Name: "Bretagne"},
		},
		Departments: []model.DepartmentRecord{
			{Code: "01", Name: "Ain", RegionCode: "84"},
			{Code: "2A", Name: "Corse-du-Sud", RegionCode: "94"},
			{Code: "2B", Name: "Haute-Corse", RegionCode: "94"},
			{Code: "971", Name: "Guadeloupe", RegionCode: "01"},
			{Code: "35", Name: "Ille-et-Vilaine", RegionCode: "53"},
			{Code: "99", Name: "Nowhere", RegionCode: "XX"},
		},
		Ballots: []model.BallotRecord{
			ballot("1", 100, 20, 5, 50, 25),
			ballot("1", 50, 10, 0, 10, 30),
			ballot("2A", 40, 10, 0, 20, 10),
			ballot("2B", 60, 10, 10, 10, 30),
			ballot("971", 30, 10, 0, 15, 5),
			ballot("ZA", 20, 5, 0, 10, 5),
			ballot("971Z", 10, 0, 0, 5, 5),
			ballot("35", 10, 5, 5, 0, 0),
		},
		Geometries: []model.GeometryRecord{
			{RegionCode: "53", Geometry: square(0, 0)},
			{RegionCode: "84", Geometry: square(1, 0)},
			{RegionCode: "94", Geometry: square(2, 0)},
			{RegionCode: "11", Geometry: square(3, 0)},
		},
	}
}
