package spatial

import (
	"context"
	"database/sql"
	"fmt"
)

// discoverGeoPackage lists feature and tile contents of a GeoPackage.
// Attribute-only contents are skipped: they have nothing to draw.
func discoverGeoPackage(ctx context.Context, db *sql.DB, path string) ([]Table, error) {
	hasGeomCols, err := tableExists(ctx, db, "gpkg_geometry_columns")
	if err != nil {
		return nil, err
	}

	// A tiles-only package may omit gpkg_geometry_columns entirely.
	geomSelect := "'', '', 0, 0"
	geomJoin := ""
	if hasGeomCols {
		geomSelect = "COALESCE(g.column_name, ''), COALESCE(g.geometry_type_name, ''), COALESCE(g.z, 0), COALESCE(g.m, 0)"
		geomJoin = "LEFT JOIN gpkg_geometry_columns g ON g.table_name = c.table_name"
	}

	query := fmt.Sprintf(`
		SELECT c.table_name, c.data_type,
		       COALESCE(c.identifier, ''), COALESCE(c.description, ''),
		       c.min_x, c.min_y, c.max_x, c.max_y, COALESCE(c.srs_id, 0),
		       %s
		FROM gpkg_contents c
		%s
		WHERE c.data_type IN ('features', 'tiles')
		ORDER BY c.table_name`, geomSelect, geomJoin)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query gpkg_contents: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var (
			name, dataType, identifier, description string
			minX, minY, maxX, maxY                  sql.NullFloat64
			srid                                    int
			column, geomName                        string
			z, m                                    int
		)
		if err := rows.Scan(&name, &dataType, &identifier, &description,
			&minX, &minY, &maxX, &maxY, &srid,
			&column, &geomName, &z, &m); err != nil {
			return nil, fmt.Errorf("scan gpkg_contents: %w", err)
		}

		geom := GeometryNone
		if dataType == "features" {
			geom = ParseGeometryName(geomName, z > 0, m > 0)
		}

		tables = append(tables, Table{
			DatabasePath:   path,
			Name:           name,
			Title:          name,
			Kind:           KindGeoPackage,
			GeometryColumn: column,
			Geometry:       geom,
			SRID:           srid,
			Extent:         extentFrom(minX, minY, maxX, maxY),
			GeoPackage: &GeoPackageMeta{
				DataType:    dataType,
				Identifier:  identifier,
				Description: description,
			},
		})
	}
	return tables, rows.Err()
}
