package spatial

// Extent is a bounding box in the table's spatial reference system.
type Extent struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Table is a discoverable layer inside a spatial database file.
//
// Kind selects which of the kind-specific metadata fields is set:
// Spatialite for KindSpatialite, GeoPackage for KindGeoPackage.
type Table struct {
	DatabasePath   string
	Name           string
	Title          string
	Kind           Kind
	GeometryColumn string
	Geometry       GeometryType
	SRID           int
	Extent         *Extent

	Spatialite *SpatialiteMeta
	GeoPackage *GeoPackageMeta
}

// SpatialiteMeta holds metadata specific to Spatialite tables.
type SpatialiteMeta struct {
	// View is true for spatial views registered in views_geometry_columns.
	View bool
	// BaseTable is the table a view draws its geometry from.
	BaseTable string
}

// GeoPackageMeta holds metadata specific to GeoPackage contents.
type GeoPackageMeta struct {
	// DataType is the gpkg_contents data_type: "features" or "tiles".
	DataType    string
	Identifier  string
	Description string
}

// TypeDescription describes the kind of table, e.g. "SpatialTable",
// "SpatialView", "GeoPackageFeatures" or "GeoPackageTiles".
func (t Table) TypeDescription() string {
	switch t.Kind {
	case KindSpatialite:
		if t.Spatialite != nil && t.Spatialite.View {
			return "SpatialView"
		}
		return "SpatialTable"
	case KindGeoPackage:
		if t.GeoPackage != nil && t.GeoPackage.DataType == "tiles" {
			return "GeoPackageTiles"
		}
		return "GeoPackageFeatures"
	}
	return ""
}

// GeometryDescription returns the geometry name, or "" for tables without
// geometry.
func (t Table) GeometryDescription() string {
	return t.Geometry.Description()
}
