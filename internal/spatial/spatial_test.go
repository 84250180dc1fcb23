package spatial

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// createDB writes a SQLite file at dir/name by executing stmts.
func createDB(t *testing.T, dir, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path
}

var spatialiteV4Schema = []string{
	`CREATE TABLE geometry_columns (
		f_table_name TEXT NOT NULL,
		f_geometry_column TEXT NOT NULL,
		geometry_type INTEGER NOT NULL,
		coord_dimension INTEGER NOT NULL,
		srid INTEGER NOT NULL,
		spatial_index_enabled INTEGER NOT NULL)`,
	`CREATE TABLE roads (id INTEGER PRIMARY KEY, geom BLOB)`,
	`CREATE TABLE rivers (id INTEGER PRIMARY KEY, geom BLOB)`,
	`CREATE TABLE parcels (id INTEGER PRIMARY KEY, outline BLOB, centroid BLOB)`,
	`INSERT INTO geometry_columns VALUES ('roads', 'geom', 2, 2, 4326, 1)`,
	`INSERT INTO geometry_columns VALUES ('rivers', 'geom', 1002, 3, 4326, 1)`,
	`INSERT INTO geometry_columns VALUES ('parcels', 'outline', 6, 2, 32632, 0)`,
	`INSERT INTO geometry_columns VALUES ('parcels', 'centroid', 1, 2, 32632, 0)`,
	`CREATE TABLE views_geometry_columns (
		view_name TEXT NOT NULL,
		view_geometry TEXT NOT NULL,
		view_rowid TEXT NOT NULL,
		f_table_name TEXT NOT NULL,
		f_geometry_column TEXT NOT NULL,
		read_only INTEGER NOT NULL)`,
	`CREATE VIEW main_roads AS SELECT id, geom FROM roads`,
	`INSERT INTO views_geometry_columns VALUES ('main_roads', 'geom', 'id', 'roads', 'geom', 1)`,
	`CREATE TABLE vector_layers_statistics (
		layer_type TEXT, table_name TEXT, geometry_column TEXT,
		row_count INTEGER,
		extent_min_x DOUBLE, extent_min_y DOUBLE, extent_max_x DOUBLE, extent_max_y DOUBLE)`,
	`INSERT INTO vector_layers_statistics VALUES ('SpatialTable', 'roads', 'geom', 10, 11.0, 46.0, 12.5, 47.25)`,
}

var legacySpatialiteSchema = []string{
	`CREATE TABLE geometry_columns (
		f_table_name TEXT NOT NULL,
		f_geometry_column TEXT NOT NULL,
		type TEXT NOT NULL,
		coord_dimension TEXT NOT NULL,
		srid INTEGER NOT NULL,
		spatial_index_enabled INTEGER NOT NULL)`,
	`INSERT INTO geometry_columns VALUES ('wells', 'geom', 'POINT', 'XYZ', 4326, 0)`,
	`INSERT INTO geometry_columns VALUES ('lakes', 'geom', 'MULTIPOLYGON', 'XY', 4326, 0)`,
}

var geoPackageSchema = []string{
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME,
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL)`,
	`INSERT INTO gpkg_contents VALUES ('trails', 'features', 'Trails', 'Hiking trails', NULL, 10.0, 45.0, 11.0, 46.0, 4326)`,
	`INSERT INTO gpkg_contents VALUES ('ortho', 'tiles', 'Orthophoto', '', NULL, NULL, NULL, NULL, NULL, 3857)`,
	`INSERT INTO gpkg_contents VALUES ('owners', 'attributes', 'Owners', '', NULL, NULL, NULL, NULL, NULL, 0)`,
	`INSERT INTO gpkg_geometry_columns VALUES ('trails', 'geom', 'LINESTRING', 4326, 1, 0)`,
}

func tablesByTitle(tables []Table) map[string]Table {
	m := make(map[string]Table, len(tables))
	for _, tb := range tables {
		m[tb.Title] = tb
	}
	return m
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
		ok   bool
	}{
		{"/maps/a.sqlite", KindSpatialite, true},
		{"/maps/A.SQLITE", KindSpatialite, true},
		{"/maps/a.db", KindSpatialite, true},
		{"/maps/a.gpkg", KindGeoPackage, true},
		{"/maps/a.mbtiles", KindUnknown, false},
		{"/maps/a.map", KindUnknown, false},
		{"/maps/sqlite", KindUnknown, false},
	}
	for _, tt := range tests {
		got, ok := KindForPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindForPath(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGeometryDescription(t *testing.T) {
	tests := []struct {
		g    GeometryType
		want string
	}{
		{GeometryPoint, "POINT"},
		{GeometryLineString + 1000, "LINESTRING Z"},
		{GeometryPolygon + 2000, "POLYGON M"},
		{GeometryMultiPolygon + 3000, "MULTIPOLYGON ZM"},
		{GeometryAny, "GEOMETRY"},
		{GeometryNone, ""},
		{GeometryType(42), ""},
		{GeometryType(5000), ""},
	}
	for _, tt := range tests {
		if got := tt.g.Description(); got != tt.want {
			t.Errorf("GeometryType(%d).Description() = %q, want %q", int(tt.g), got, tt.want)
		}
	}
}

func TestParseGeometryName(t *testing.T) {
	if got := ParseGeometryName("multilinestring", false, false); got != GeometryMultiLineString {
		t.Errorf("got %v, want MULTILINESTRING", got)
	}
	if got := ParseGeometryName("POINT", true, true); got != GeometryPoint+3000 {
		t.Errorf("got %v, want POINT ZM", got)
	}
	if got := ParseGeometryName("CURVEPOLYGON", false, false); got != GeometryAny {
		t.Errorf("unknown name: got %v, want GEOMETRY", got)
	}
	g := ParseGeometryName("POLYGON", true, false)
	if !g.HasZ() || g.HasM() || g.Base() != GeometryPolygon {
		t.Errorf("POLYGON Z flags wrong: %v", g)
	}
}

func TestOpenSpatialiteV4(t *testing.T) {
	path := createDB(t, t.TempDir(), "field.sqlite", spatialiteV4Schema...)
	ctx := context.Background()

	h, err := SQLiteOpener{}.Open(ctx, path, KindSpatialite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	if h.Path() != path || h.Kind() != KindSpatialite {
		t.Errorf("unexpected handler identity: %s %v", h.Path(), h.Kind())
	}

	tables, err := h.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 5 {
		t.Fatalf("expected 5 tables, got %d: %+v", len(tables), tables)
	}
	byTitle := tablesByTitle(tables)

	roads, ok := byTitle["roads"]
	if !ok {
		t.Fatalf("roads missing: %v", byTitle)
	}
	if roads.TypeDescription() != "SpatialTable" {
		t.Errorf("roads type: %q", roads.TypeDescription())
	}
	if roads.GeometryDescription() != "LINESTRING" {
		t.Errorf("roads geometry: %q", roads.GeometryDescription())
	}
	if roads.SRID != 4326 {
		t.Errorf("roads SRID: %d", roads.SRID)
	}
	if roads.Extent == nil || roads.Extent.MaxY != 47.25 {
		t.Errorf("roads extent: %+v", roads.Extent)
	}
	if roads.DatabasePath != path {
		t.Errorf("roads path: %s", roads.DatabasePath)
	}

	if got := byTitle["rivers"].GeometryDescription(); got != "LINESTRING Z" {
		t.Errorf("rivers geometry: %q", got)
	}
	if byTitle["rivers"].Extent != nil {
		t.Errorf("rivers should have no extent")
	}

	// Two geometry columns on one table get qualified titles.
	if _, ok := byTitle["parcels.outline"]; !ok {
		t.Errorf("expected parcels.outline title, got %v", byTitle)
	}
	if got := byTitle["parcels.centroid"].GeometryDescription(); got != "POINT" {
		t.Errorf("parcels.centroid geometry: %q", got)
	}

	view, ok := byTitle["main_roads"]
	if !ok {
		t.Fatalf("main_roads view missing")
	}
	if view.TypeDescription() != "SpatialView" || view.Spatialite.BaseTable != "roads" {
		t.Errorf("view metadata: %q %+v", view.TypeDescription(), view.Spatialite)
	}
	if view.GeometryDescription() != "LINESTRING" {
		t.Errorf("view geometry: %q", view.GeometryDescription())
	}
}

func TestOpenSpatialiteLegacy(t *testing.T) {
	path := createDB(t, t.TempDir(), "old.db", legacySpatialiteSchema...)
	ctx := context.Background()

	h, err := SQLiteOpener{}.Open(ctx, path, KindSpatialite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	tables, err := h.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	byTitle := tablesByTitle(tables)
	if got := byTitle["wells"].GeometryDescription(); got != "POINT Z" {
		t.Errorf("wells geometry: %q", got)
	}
	if got := byTitle["lakes"].GeometryDescription(); got != "MULTIPOLYGON" {
		t.Errorf("lakes geometry: %q", got)
	}
}

func TestOpenGeoPackage(t *testing.T) {
	path := createDB(t, t.TempDir(), "survey.gpkg", geoPackageSchema...)
	ctx := context.Background()

	h, err := SQLiteOpener{}.Open(ctx, path, KindGeoPackage)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	tables, err := h.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected features and tiles only, got %d: %+v", len(tables), tables)
	}
	byTitle := tablesByTitle(tables)

	trails := byTitle["trails"]
	if trails.TypeDescription() != "GeoPackageFeatures" {
		t.Errorf("trails type: %q", trails.TypeDescription())
	}
	if trails.GeometryDescription() != "LINESTRING Z" {
		t.Errorf("trails geometry: %q", trails.GeometryDescription())
	}
	if trails.Extent == nil || trails.Extent.MinX != 10.0 {
		t.Errorf("trails extent: %+v", trails.Extent)
	}
	if trails.GeoPackage.Identifier != "Trails" {
		t.Errorf("trails identifier: %q", trails.GeoPackage.Identifier)
	}

	ortho := byTitle["ortho"]
	if ortho.TypeDescription() != "GeoPackageTiles" {
		t.Errorf("ortho type: %q", ortho.TypeDescription())
	}
	if ortho.GeometryDescription() != "" {
		t.Errorf("tiles should have empty geometry description, got %q", ortho.GeometryDescription())
	}
	if ortho.Extent != nil {
		t.Errorf("ortho should have no extent")
	}
}

func TestOpenTilesOnlyGeoPackage(t *testing.T) {
	path := createDB(t, t.TempDir(), "tiles.gpkg", geoPackageSchema[0],
		`INSERT INTO gpkg_contents VALUES ('ortho', 'tiles', 'Orthophoto', '', NULL, 1, 2, 3, 4, 3857)`)
	ctx := context.Background()

	h, err := SQLiteOpener{}.Open(ctx, path, KindGeoPackage)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	tables, err := h.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 1 || tables[0].Title != "ortho" {
		t.Fatalf("unexpected tables: %+v", tables)
	}
}

func TestOpenRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	plain := createDB(t, dir, "plain.sqlite", `CREATE TABLE notes (id INTEGER)`)
	if _, err := (SQLiteOpener{}).Open(ctx, plain, KindSpatialite); !errors.Is(err, ErrNotSpatial) {
		t.Errorf("plain sqlite: expected ErrNotSpatial, got %v", err)
	}

	// A Spatialite file is not a GeoPackage.
	spl := createDB(t, dir, "field.sqlite", spatialiteV4Schema...)
	if _, err := (SQLiteOpener{}).Open(ctx, spl, KindGeoPackage); !errors.Is(err, ErrNotSpatial) {
		t.Errorf("spatialite as gpkg: expected ErrNotSpatial, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.sqlite")
	if err := os.WriteFile(garbage, []byte("this is not a database file at all, just text padding it out"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (SQLiteOpener{}).Open(ctx, garbage, KindSpatialite); err == nil {
		t.Error("garbage file: expected error")
	}

	missing := filepath.Join(dir, "missing.sqlite")
	if _, err := (SQLiteOpener{}).Open(ctx, missing, KindSpatialite); err == nil {
		t.Error("missing file: expected error")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Error("opening a missing file must not create it")
	}

	if _, err := (SQLiteOpener{}).Open(ctx, plain, KindUnknown); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unknown kind: expected ErrUnsupported, got %v", err)
	}
}

func TestHandlerIsReadOnly(t *testing.T) {
	path := createDB(t, t.TempDir(), "field.sqlite", spatialiteV4Schema...)
	ctx := context.Background()

	h, err := SQLiteOpener{}.Open(ctx, path, KindSpatialite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	sh := h.(*sqliteHandler)
	if _, err := sh.db.Exec(`DELETE FROM geometry_columns`); err == nil {
		t.Error("expected write to fail on a query-only handler")
	}
}

func TestHandlerCloseAndCache(t *testing.T) {
	path := createDB(t, t.TempDir(), "field.sqlite", spatialiteV4Schema...)
	ctx := context.Background()

	h, err := SQLiteOpener{}.Open(ctx, path, KindSpatialite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first, err := h.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	first[0].Title = "mutated"
	second, err := h.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables (cached): %v", err)
	}
	if second[0].Title == "mutated" {
		t.Error("Tables must return a copy of the cached slice")
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := h.Tables(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Tables after Close: expected ErrClosed, got %v", err)
	}
}

func TestCorrectiveModeSkipsOrphanedLayers(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tables := func(opener SQLiteOpener, path string, kind Kind) map[string]Table {
		t.Helper()
		h, err := opener.Open(ctx, path, kind)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer h.Close()
		ts, err := h.Tables(ctx)
		if err != nil {
			t.Fatalf("Tables: %v", err)
		}
		return tablesByTitle(ts)
	}

	// The legacy schema registers wells and lakes, but only wells exists.
	legacy := createDB(t, dir, "old.db", append(slices.Clone(legacySpatialiteSchema),
		`CREATE TABLE wells (id INTEGER PRIMARY KEY, geom BLOB)`)...)
	if got := tables(SQLiteOpener{}, legacy, KindSpatialite); len(got) != 2 {
		t.Errorf("strict: expected 2 tables, got %v", got)
	}
	got := tables(SQLiteOpener{Mode: QueryModeCorrective}, legacy, KindSpatialite)
	if _, ok := got["wells"]; !ok || len(got) != 1 {
		t.Errorf("corrective: expected only wells, got %v", got)
	}

	// Every v4 layer, the view included, is backed by the schema.
	v4 := createDB(t, dir, "field.sqlite", spatialiteV4Schema...)
	if got := tables(SQLiteOpener{Mode: QueryModeCorrective}, v4, KindSpatialite); len(got) != 5 {
		t.Errorf("corrective v4: expected 5 tables, got %d", len(got))
	}

	gpkg := createDB(t, dir, "survey.gpkg", append(slices.Clone(geoPackageSchema),
		`CREATE TABLE ortho (id INTEGER PRIMARY KEY, zoom_level INTEGER, tile_data BLOB)`)...)
	got = tables(SQLiteOpener{Mode: QueryModeCorrective}, gpkg, KindGeoPackage)
	if _, ok := got["ortho"]; !ok || len(got) != 1 {
		t.Errorf("corrective gpkg: expected only ortho, got %v", got)
	}
}
