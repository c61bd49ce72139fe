package filter

import "time"

// TypeID is a DuckDB logical type id, canonicalised by Canonical.
type TypeID string

const (
	TypeBoolean     TypeID = "BOOLEAN"
	TypeTinyInt     TypeID = "TINYINT"
	TypeSmallInt    TypeID = "SMALLINT"
	TypeInteger     TypeID = "INTEGER"
	TypeBigInt      TypeID = "BIGINT"
	TypeUTinyInt    TypeID = "UTINYINT"
	TypeUSmallInt   TypeID = "USMALLINT"
	TypeUInteger    TypeID = "UINTEGER"
	TypeUBigInt     TypeID = "UBIGINT"
	TypeFloat       TypeID = "FLOAT"
	TypeDouble      TypeID = "DOUBLE"
	TypeDecimal     TypeID = "DECIMAL"
	TypeVarchar     TypeID = "VARCHAR"
	TypeChar        TypeID = "CHAR"
	TypeUUID        TypeID = "UUID"
	TypeBlob        TypeID = "BLOB"
	TypeDate        TypeID = "DATE"
	TypeTime        TypeID = "TIME"
	TypeTimeTZ      TypeID = "TIME_TZ"
	TypeTimestamp   TypeID = "TIMESTAMP"
	TypeTimestampS  TypeID = "TIMESTAMP_SEC"
	TypeTimestampMS TypeID = "TIMESTAMP_MS"
	TypeTimestampNS TypeID = "TIMESTAMP_NS"
	TypeTimestampTZ TypeID = "TIMESTAMP_TZ"
)

// DuckDB spells some ids in their SQL form.
var typeAliases = map[TypeID]TypeID{
	"TIMESTAMP WITH TIME ZONE":    TypeTimestampTZ,
	"TIMESTAMPTZ":                 TypeTimestampTZ,
	"TIMESTAMP WITHOUT TIME ZONE": TypeTimestamp,
	"TIMESTAMP_S":                 TypeTimestampS,
	"TIME WITH TIME ZONE":         TypeTimeTZ,
	"TIMETZ":                      TypeTimeTZ,
	"INT":                         TypeInteger,
	"INT1":                        TypeTinyInt,
	"INT2":                        TypeSmallInt,
	"INT4":                        TypeInteger,
	"INT8":                        TypeBigInt,
	"REAL":                        TypeFloat,
	"FLOAT4":                      TypeFloat,
	"FLOAT8":                      TypeDouble,
	"BOOL":                        TypeBoolean,
	"STRING":                      TypeVarchar,
	"TEXT":                        TypeVarchar,
}

// Canonical maps SQL spellings onto the short ids.
func (t TypeID) Canonical() TypeID {
	if c, ok := typeAliases[t]; ok {
		return c
	}
	return t
}

func (t TypeID) signed() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return true
	}
	return false
}

func (t TypeID) unsigned() bool {
	switch t {
	case TypeUTinyInt, TypeUSmallInt, TypeUInteger, TypeUBigInt:
		return true
	}
	return false
}

func (t TypeID) temporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeTimeTZ, TypeTimestamp, TypeTimestampS,
		TypeTimestampMS, TypeTimestampNS, TypeTimestampTZ:
		return true
	}
	return false
}

// Value is a constant operand.
//
// Data holds bool, int64, uint64, float64, string, []byte or time.Time.
// DATE and TIMESTAMP variants arrive as integers and are converted to UTC
// time.Time; TIME becomes a "15:04:05.999999" string. DECIMAL keeps the
// string or number DuckDB sent.
type Value struct {
	Type TypeID
	Null bool
	Data any
}

// temporal converts DuckDB's integer encodings of dates and times.
func temporal(id TypeID, v int64) any {
	switch id {
	case TypeDate:
		return time.Unix(v*86400, 0).UTC()
	case TypeTimestampS:
		return time.Unix(v, 0).UTC()
	case TypeTimestampMS:
		return time.UnixMilli(v).UTC()
	case TypeTimestampNS:
		return time.Unix(0, v).UTC()
	case TypeTime:
		return clock(v)
	case TypeTimeTZ:
		// micros since midnight in the upper 40 bits, offset in the lower 24
		return clock(v >> 24)
	}
	return time.UnixMicro(v).UTC()
}

func clock(micros int64) string {
	return time.UnixMicro(micros).UTC().Format("15:04:05.999999")
}
