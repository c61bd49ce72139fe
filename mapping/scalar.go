package mapping

import "strings"

// ScalarType is the fixed set of primitive column types used for value coercion.
type ScalarType string

const (
	TypeLong      ScalarType = "long"
	TypeInt       ScalarType = "int"
	TypeFloat     ScalarType = "float"
	TypeDouble    ScalarType = "double"
	TypeTimestamp ScalarType = "timestamp"
	TypeDate      ScalarType = "date"
	TypeTime      ScalarType = "time"
	TypeUUID      ScalarType = "uuid"
	TypeByte      ScalarType = "byte"
	TypeString    ScalarType = "string"
	TypeBoolean   ScalarType = "boolean"
	TypeGeometry  ScalarType = "geometry"
)

// Valid reports whether t is one of the known scalar types.
func (t ScalarType) Valid() bool {
	switch t {
	case TypeLong, TypeInt, TypeFloat, TypeDouble, TypeTimestamp, TypeDate,
		TypeTime, TypeUUID, TypeByte, TypeString, TypeBoolean, TypeGeometry:
		return true
	}
	return false
}

// ParseScalarType parses an explicit type override. Matching is case-insensitive.
func ParseScalarType(s string) (ScalarType, bool) {
	t := ScalarType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// typeRule is one link of the type mapping chain.
type typeRule struct {
	match  func(kind, format string) bool
	result ScalarType
}

func kindFormat(kind string, formats ...string) func(string, string) bool {
	return func(k, f string) bool {
		if k != kind {
			return false
		}
		for _, want := range formats {
			if f == want {
				return true
			}
		}
		return false
	}
}

// typeRules is checked in order; the first match wins.
var typeRules = []typeRule{
	{kindFormat("integer", "int64"), TypeLong},
	{kindFormat("integer", "int32", ""), TypeInt},
	{kindFormat("number", "float"), TypeFloat},
	{kindFormat("number", "double", ""), TypeDouble},
	{kindFormat("string", "date-time"), TypeTimestamp},
	{kindFormat("string", "date"), TypeDate},
	{kindFormat("string", "time"), TypeTime},
	{kindFormat("string", "uuid"), TypeUUID},
	{kindFormat("string", "byte", "binary"), TypeByte},
	{kindFormat("string", "wkt", "geojson"), TypeGeometry},
	{kindFormat("string", ""), TypeString},
	{func(k, _ string) bool { return k == "boolean" }, TypeBoolean},
}

// MapType maps a source type descriptor to a scalar type.
// Unmatched combinations fall back to TypeString.
func MapType(kind, format string) ScalarType {
	kind = strings.ToLower(kind)
	format = strings.ToLower(format)
	for _, r := range typeRules {
		if r.match(kind, format) {
			return r.result
		}
	}
	return TypeString
}

// ResolveType returns override when it is set and valid, otherwise MapType(kind, format).
func ResolveType(kind, format string, override ScalarType) ScalarType {
	if override != "" && override.Valid() {
		return override
	}
	return MapType(kind, format)
}
