package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// GeometryExtensionName is the Arrow extension name of geometry columns,
// understood by DuckDB spatial and GeoArrow readers.
const GeometryExtensionName = "geoarrow.wkb"

// ErrInvalidGeometry is wrapped by geometry parse and validation errors.
var ErrInvalidGeometry = errors.New("invalid geometry")

// GeometryType marks a Binary (or LargeBinary) column as WKB geometry.
type GeometryType struct {
	arrow.ExtensionBase
}

// GeometryArray is the array type of geometry columns.
type GeometryArray struct {
	array.ExtensionArrayBase
}

// NewGeometryType returns the geometry extension over Binary storage.
func NewGeometryType() *GeometryType {
	return &GeometryType{ExtensionBase: arrow.ExtensionBase{Storage: arrow.BinaryTypes.Binary}}
}

func (*GeometryType) ArrayType() reflect.Type { return reflect.TypeOf(GeometryArray{}) }
func (*GeometryType) ExtensionName() string   { return GeometryExtensionName }
func (*GeometryType) Serialize() string       { return "" }

func (g *GeometryType) String() string {
	return fmt.Sprintf("extension<%s, storage=%s>", GeometryExtensionName, g.StorageType())
}

func (*GeometryType) Deserialize(storage arrow.DataType, _ string) (arrow.ExtensionType, error) {
	switch storage.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY:
		return &GeometryType{ExtensionBase: arrow.ExtensionBase{Storage: storage}}, nil
	}
	return nil, fmt.Errorf("%s: storage must be binary, got %s", GeometryExtensionName, storage)
}

func (g *GeometryType) ExtensionEquals(other arrow.ExtensionType) bool {
	o, ok := other.(*GeometryType)
	return ok && arrow.TypeEqual(g.StorageType(), o.StorageType())
}

type geoMetadata struct {
	CRS           *projCRS `json:"crs,omitempty"`
	Encoding      string   `json:"encoding"`
	GeometryTypes []string `json:"geometry_types,omitempty"`
}

type projCRS struct {
	ID struct {
		Authority string `json:"authority"`
		Code      int    `json:"code"`
	} `json:"id"`
}

// NewGeometryField returns a nullable-or-not WKB field tagged with the
// EPSG code srid. kind narrows the geometry type; "" or "GEOMETRY"
// allows any.
func NewGeometryField(name string, nullable bool, srid int, kind string) arrow.Field {
	md := geoMetadata{Encoding: "WKB"}
	if srid > 0 {
		md.CRS = &projCRS{}
		md.CRS.ID.Authority, md.CRS.ID.Code = "EPSG", srid
	}
	if kind != "" && !strings.EqualFold(kind, "GEOMETRY") {
		md.GeometryTypes = []string{kind}
	}
	encoded, _ := json.Marshal(md)

	return arrow.Field{
		Name:     name,
		Type:     NewGeometryType(),
		Nullable: nullable,
		Metadata: arrow.NewMetadata(
			[]string{"ARROW:extension:name", "ARROW:extension:metadata", "srid", "geometry_type"},
			[]string{GeometryExtensionName, string(encoded), strconv.Itoa(srid), kind},
		),
	}
}

// ParseGeometry reads WKT or a GeoJSON geometry object and returns
// validated WKB.
func ParseGeometry(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidGeometry)
	}

	var (
		g   orb.Geometry
		err error
	)
	if text[0] == '{' {
		var gj *geojson.Geometry
		gj, err = geojson.UnmarshalGeometry([]byte(text))
		if err == nil {
			g = gj.Geometry()
		}
	} else {
		g, err = wkt.Unmarshal(text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if err := checkGeometry(g); err != nil {
		return nil, err
	}
	return wkb.Marshal(g)
}

// DecodeGeometry reads WKB back into a geometry.
func DecodeGeometry(b []byte) (orb.Geometry, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty WKB", ErrInvalidGeometry)
	}
	return wkb.Unmarshal(b)
}

// checkGeometry rejects shapes WKB readers choke on: short lines, open
// or short rings, empty multi-geometries.
func checkGeometry(g orb.Geometry) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidGeometry}, args...)...)
	}
	switch g := g.(type) {
	case nil:
		return bad("missing geometry")
	case orb.Point:
	case orb.MultiPoint:
		if len(g) == 0 {
			return bad("empty multipoint")
		}
	case orb.LineString:
		if len(g) < 2 {
			return bad("linestring has %d points", len(g))
		}
	case orb.Ring:
		return checkRing(g, 0, bad)
	case orb.Polygon:
		if len(g) == 0 {
			return bad("polygon has no rings")
		}
		for i, r := range g {
			if err := checkRing(r, i, bad); err != nil {
				return err
			}
		}
	case orb.MultiLineString:
		return checkEach(len(g), "multilinestring", func(i int) orb.Geometry { return g[i] }, bad)
	case orb.MultiPolygon:
		return checkEach(len(g), "multipolygon", func(i int) orb.Geometry { return g[i] }, bad)
	case orb.Collection:
		for i, c := range g {
			if err := checkGeometry(c); err != nil {
				return fmt.Errorf("collection[%d]: %w", i, err)
			}
		}
	default:
		return bad("unsupported type %T", g)
	}
	return nil
}

func checkRing(r orb.Ring, i int, bad func(string, ...any) error) error {
	if len(r) < 4 {
		return bad("ring %d has %d points", i, len(r))
	}
	if !r.Closed() {
		return bad("ring %d is open", i)
	}
	return nil
}

func checkEach(n int, name string, at func(int) orb.Geometry, bad func(string, ...any) error) error {
	if n == 0 {
		return bad("empty %s", name)
	}
	for i := range n {
		if err := checkGeometry(at(i)); err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i, err)
		}
	}
	return nil
}

func init() {
	_ = arrow.RegisterExtensionType(NewGeometryType())
}
