package model

import "github.com/twpayne/go-geom"

// RegionRecord is one administrative region from the region reference table.
type RegionRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DepartmentRecord is one department; RegionCode references RegionRecord.Code.
type DepartmentRecord struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	RegionCode string `json:"region_code"`
}

// GeoDepartmentRecord is the flat region/department mapping produced by the
// geography join.
type GeoDepartmentRecord struct {
	CodeReg string `json:"code_reg"`
	NameReg string `json:"name_reg"`
	CodeDep string `json:"code_dep"`
	NameDep string `json:"name_dep"`
}

// GeometryRecord holds the outline of one region.
type GeometryRecord struct {
	RegionCode string `json:"region_code"`
	Name       string `json:"name,omitempty"`
	Geometry   geom.T `json:"-"` // *geom.Polygon or *geom.MultiPolygon
}

// ReservedRegionCodes are the region codes of DOM-TOM-COM and other
// collectivities, excluded from the metropolitan analysis.
var ReservedRegionCodes = []string{"01", "02", "03", "04", "06", "COM"}

// IsReservedRegion reports whether code is one of ReservedRegionCodes.
func IsReservedRegion(code string) bool {
	for _, c := range ReservedRegionCodes {
		if c == code {
			return true
		}
	}
	return false
}
