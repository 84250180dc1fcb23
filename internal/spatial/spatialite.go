package spatial

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// discoverSpatialite lists vector tables and spatial views of a Spatialite
// database. Both the v4 layout (integer geometry_type) and the legacy layout
// (text type plus coord_dimension) are understood.
func discoverSpatialite(ctx context.Context, db *sql.DB, path string) ([]Table, error) {
	v4, err := columnExists(ctx, db, "geometry_columns", "geometry_type")
	if err != nil {
		return nil, err
	}

	var tables []Table
	if v4 {
		tables, err = spatialiteTablesV4(ctx, db, path)
	} else {
		tables, err = spatialiteTablesLegacy(ctx, db, path)
	}
	if err != nil {
		return nil, err
	}

	if v4 {
		hasViews, err := tableExists(ctx, db, "views_geometry_columns")
		if err != nil {
			return nil, err
		}
		if hasViews {
			views, err := spatialiteViews(ctx, db, path)
			if err != nil {
				return nil, err
			}
			tables = append(tables, views...)
		}
	}

	extents, err := spatialiteExtents(ctx, db)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		key := extentKey(tables[i].Name, tables[i].GeometryColumn)
		if e, ok := extents[key]; ok {
			tables[i].Extent = e
		}
	}

	assignTitles(tables)
	return tables, nil
}

func spatialiteTablesV4(ctx context.Context, db *sql.DB, path string) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT f_table_name, f_geometry_column, geometry_type, srid
		FROM geometry_columns
		ORDER BY f_table_name, f_geometry_column`)
	if err != nil {
		return nil, fmt.Errorf("query geometry_columns: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var (
			name, column string
			geomType     int
			srid         sql.NullInt64
		)
		if err := rows.Scan(&name, &column, &geomType, &srid); err != nil {
			return nil, fmt.Errorf("scan geometry_columns: %w", err)
		}
		tables = append(tables, Table{
			DatabasePath:   path,
			Name:           name,
			Kind:           KindSpatialite,
			GeometryColumn: column,
			Geometry:       GeometryType(geomType),
			SRID:           int(srid.Int64),
			Spatialite:     &SpatialiteMeta{},
		})
	}
	return tables, rows.Err()
}

func spatialiteTablesLegacy(ctx context.Context, db *sql.DB, path string) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT f_table_name, f_geometry_column, type, coord_dimension, srid
		FROM geometry_columns
		ORDER BY f_table_name, f_geometry_column`)
	if err != nil {
		return nil, fmt.Errorf("query legacy geometry_columns: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var (
			name, column, typeName string
			coordDim               sql.NullString
			srid                   sql.NullInt64
		)
		if err := rows.Scan(&name, &column, &typeName, &coordDim, &srid); err != nil {
			return nil, fmt.Errorf("scan legacy geometry_columns: %w", err)
		}
		hasZ, hasM := parseCoordDimension(coordDim.String)
		tables = append(tables, Table{
			DatabasePath:   path,
			Name:           name,
			Kind:           KindSpatialite,
			GeometryColumn: column,
			Geometry:       ParseGeometryName(typeName, hasZ, hasM),
			SRID:           int(srid.Int64),
			Spatialite:     &SpatialiteMeta{},
		})
	}
	return tables, rows.Err()
}

// spatialiteViews lists spatial views; their geometry type and SRID come
// from the base table they are registered against.
func spatialiteViews(ctx context.Context, db *sql.DB, path string) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT v.view_name, v.view_geometry, v.f_table_name, g.geometry_type, g.srid
		FROM views_geometry_columns v
		JOIN geometry_columns g
		  ON lower(g.f_table_name) = lower(v.f_table_name)
		 AND lower(g.f_geometry_column) = lower(v.f_geometry_column)
		ORDER BY v.view_name, v.view_geometry`)
	if err != nil {
		return nil, fmt.Errorf("query views_geometry_columns: %w", err)
	}
	defer rows.Close()

	var views []Table
	for rows.Next() {
		var (
			name, column, base string
			geomType           int
			srid               sql.NullInt64
		)
		if err := rows.Scan(&name, &column, &base, &geomType, &srid); err != nil {
			return nil, fmt.Errorf("scan views_geometry_columns: %w", err)
		}
		views = append(views, Table{
			DatabasePath:   path,
			Name:           name,
			Kind:           KindSpatialite,
			GeometryColumn: column,
			Geometry:       GeometryType(geomType),
			SRID:           int(srid.Int64),
			Spatialite:     &SpatialiteMeta{View: true, BaseTable: base},
		})
	}
	return views, rows.Err()
}

// spatialiteExtents reads layer extents from vector_layers_statistics when
// the database has it. Missing statistics are not an error.
func spatialiteExtents(ctx context.Context, db *sql.DB) (map[string]*Extent, error) {
	ok, err := tableExists(ctx, db, "vector_layers_statistics")
	if err != nil || !ok {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT table_name, geometry_column,
		       extent_min_x, extent_min_y, extent_max_x, extent_max_y
		FROM vector_layers_statistics`)
	if err != nil {
		return nil, fmt.Errorf("query vector_layers_statistics: %w", err)
	}
	defer rows.Close()

	extents := make(map[string]*Extent)
	for rows.Next() {
		var (
			name, column           string
			minX, minY, maxX, maxY sql.NullFloat64
		)
		if err := rows.Scan(&name, &column, &minX, &minY, &maxX, &maxY); err != nil {
			return nil, fmt.Errorf("scan vector_layers_statistics: %w", err)
		}
		if e := extentFrom(minX, minY, maxX, maxY); e != nil {
			extents[extentKey(name, column)] = e
		}
	}
	return extents, rows.Err()
}

func extentKey(table, column string) string {
	return strings.ToLower(table) + "\x00" + strings.ToLower(column)
}

// assignTitles sets each table's title to its name, qualified with the
// geometry column when one name carries several geometry columns, so titles
// stay unique within a file.
func assignTitles(tables []Table) {
	counts := make(map[string]int, len(tables))
	for _, t := range tables {
		counts[strings.ToLower(t.Name)]++
	}
	for i := range tables {
		if counts[strings.ToLower(tables[i].Name)] > 1 {
			tables[i].Title = tables[i].Name + "." + tables[i].GeometryColumn
		} else {
			tables[i].Title = tables[i].Name
		}
	}
}
