package rowset

import (
	"slices"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/mapping"
)

// GeometrySRID is the spatial reference recorded on geometry columns.
const GeometrySRID = 4326

// DataType returns the Arrow type carrying values of a scalar type.
func DataType(t mapping.ScalarType) arrow.DataType {
	switch t {
	case mapping.TypeLong:
		return arrow.PrimitiveTypes.Int64
	case mapping.TypeInt:
		return arrow.PrimitiveTypes.Int32
	case mapping.TypeFloat:
		return arrow.PrimitiveTypes.Float32
	case mapping.TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case mapping.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case mapping.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case mapping.TypeTime:
		return arrow.FixedWidthTypes.Time64us
	case mapping.TypeByte:
		return arrow.BinaryTypes.Binary
	case mapping.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case mapping.TypeGeometry:
		return catalog.NewGeometryType()
	}
	return arrow.BinaryTypes.String
}

// Field returns the nullable Arrow field of a column. The field metadata
// records the column's source key and direction.
func Field(c mapping.Column) arrow.Field {
	var f arrow.Field
	if c.Type == mapping.TypeGeometry {
		f = catalog.NewGeometryField(c.Name, true, GeometrySRID, "GEOMETRY")
	} else {
		f = arrow.Field{Name: c.Name, Type: DataType(c.Type), Nullable: true}
	}
	keys := append(slices.Clone(f.Metadata.Keys()), "source", "direction")
	values := append(slices.Clone(f.Metadata.Values()), c.SourceKey(), c.Direction.String())
	f.Metadata = arrow.NewMetadata(keys, values)
	return f
}

// Schema returns the Arrow schema of a table: one nullable field per column
// in catalog order.
func Schema(t *mapping.Table) *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = Field(c)
	}
	return arrow.NewSchema(fields, nil)
}
