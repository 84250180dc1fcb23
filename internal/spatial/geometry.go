package spatial

import (
	"strconv"
	"strings"
)

// GeometryType is a Spatialite/OGC geometry type code. The base types are
// 0..7; the dimension model adds 1000 (Z), 2000 (M) or 3000 (ZM).
type GeometryType int

const (
	GeometryAny GeometryType = iota
	GeometryPoint
	GeometryLineString
	GeometryPolygon
	GeometryMultiPoint
	GeometryMultiLineString
	GeometryMultiPolygon
	GeometryCollection
)

// GeometryNone marks tables without geometry (GeoPackage tiles).
const GeometryNone GeometryType = -1

const (
	dimZ  = 1000
	dimM  = 2000
	dimZM = 3000
)

var baseNames = []string{
	"GEOMETRY",
	"POINT",
	"LINESTRING",
	"POLYGON",
	"MULTIPOINT",
	"MULTILINESTRING",
	"MULTIPOLYGON",
	"GEOMETRYCOLLECTION",
}

// Base returns the type without its dimension offset.
func (g GeometryType) Base() GeometryType {
	if g < 0 {
		return g
	}
	return g % 1000
}

// HasZ reports whether the type carries a Z coordinate.
func (g GeometryType) HasZ() bool {
	d := g.dimension()
	return d == dimZ || d == dimZM
}

// HasM reports whether the type carries an M measure.
func (g GeometryType) HasM() bool {
	d := g.dimension()
	return d == dimM || d == dimZM
}

func (g GeometryType) dimension() GeometryType {
	if g < 0 {
		return 0
	}
	return g - g%1000
}

// Valid reports whether g is a known code.
func (g GeometryType) Valid() bool {
	if g == GeometryNone {
		return true
	}
	if g < 0 || g > dimZM+GeometryCollection {
		return false
	}
	return int(g.Base()) < len(baseNames)
}

// Description returns the WKT-style name, e.g. "POINT", "LINESTRING Z",
// "MULTIPOLYGON ZM". Tables without geometry yield "".
func (g GeometryType) Description() string {
	if g == GeometryNone || !g.Valid() {
		return ""
	}
	name := baseNames[g.Base()]
	switch g.dimension() {
	case dimZ:
		return name + " Z"
	case dimM:
		return name + " M"
	case dimZM:
		return name + " ZM"
	}
	return name
}

func (g GeometryType) String() string {
	if d := g.Description(); d != "" {
		return d
	}
	return "GeometryType(" + strconv.Itoa(int(g)) + ")"
}

// ParseGeometryName maps a type name such as "MULTIPOLYGON" plus its
// dimension flags to a code. Unknown names yield GeometryAny.
func ParseGeometryName(name string, hasZ, hasM bool) GeometryType {
	base := GeometryAny
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range baseNames {
		if n == upper {
			base = GeometryType(i)
			break
		}
	}
	switch {
	case hasZ && hasM:
		return base + dimZM
	case hasZ:
		return base + dimZ
	case hasM:
		return base + dimM
	}
	return base
}

// parseCoordDimension interprets the legacy Spatialite coord_dimension column,
// which holds either a name ("XY", "XYZ", "XYM", "XYZM") or a count (2, 3, 4).
func parseCoordDimension(v string) (hasZ, hasM bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "XYZ", "3":
		return true, false
	case "XYM":
		return false, true
	case "XYZM", "4":
		return true, true
	}
	return false, false
}
