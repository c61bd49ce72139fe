package rowset

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/mapping"
)

func TestCoerceNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  mapping.ScalarType
		want any
	}{
		{"json long", json.Number("42"), mapping.TypeLong, int64(42)},
		{"whole float long", json.Number("42.0"), mapping.TypeLong, int64(42)},
		{"string long", " 7 ", mapping.TypeLong, int64(7)},
		{"float64 int", float64(3), mapping.TypeInt, int32(3)},
		{"json int", json.Number("-5"), mapping.TypeInt, int32(-5)},
		{"json float", json.Number("1.5"), mapping.TypeFloat, float32(1.5)},
		{"json double", json.Number("2.25"), mapping.TypeDouble, 2.25},
		{"string double", "1e3", mapping.TypeDouble, 1000.0},
		{"unsigned long", uint64(9), mapping.TypeLong, int64(9)},
		{"unsigned double", uint64(9), mapping.TypeDouble, 9.0},
		{"uint32 int", uint32(12), mapping.TypeInt, int32(12)},
		{"int16 long", int16(-3), mapping.TypeLong, int64(-3)},
		{"int8 float", int8(4), mapping.TypeFloat, float32(4)},
		{"int32 double", int32(6), mapping.TypeDouble, 6.0},
		{"unsigned string", uint64(18446744073709551615), mapping.TypeString, "18446744073709551615"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceNumberErrors(t *testing.T) {
	_, err := Coerce(json.Number("1.5"), mapping.TypeLong)
	assert.Error(t, err)

	_, err = Coerce("abc", mapping.TypeDouble)
	assert.Error(t, err)

	_, err = Coerce(json.Number("3000000000"), mapping.TypeInt)
	assert.ErrorContains(t, err, "overflows int32")

	_, err = Coerce(uint64(1<<63), mapping.TypeLong)
	assert.ErrorContains(t, err, "overflows int64")

	_, err = Coerce(true, mapping.TypeLong)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestCoerceTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 15, 0, time.UTC)
	inputs := []any{
		"2024-03-01T12:30:15Z",
		"2024-03-01T14:30:15+02:00",
		"2024-03-01 12:30:15",
		"2024-03-01T12:30:15",
		json.Number("1709296215"),
		"1709296215",
	}
	for _, in := range inputs {
		got, err := Coerce(in, mapping.TypeTimestamp)
		require.NoError(t, err, "input %v", in)
		assert.True(t, want.Equal(got.(time.Time)), "input %v: got %v", in, got)
		assert.Equal(t, time.UTC, got.(time.Time).Location())
	}

	got, err := Coerce("2024-03-01T12:30:15.123456Z", mapping.TypeTimestamp)
	require.NoError(t, err)
	assert.Equal(t, 123456000, got.(time.Time).Nanosecond())

	_, err = Coerce("yesterday", mapping.TypeTimestamp)
	assert.ErrorContains(t, err, "unrecognized timestamp")
}

func TestCoerceDateAndTime(t *testing.T) {
	got, err := Coerce("2024-03-01", mapping.TypeDate)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = Coerce("2024-03-01T23:10:00Z", mapping.TypeDate)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = Coerce("March 1st", mapping.TypeDate)
	assert.ErrorContains(t, err, "unrecognized date")

	got, err = Coerce("08:15:30.5", mapping.TypeTime)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+15*time.Minute+30*time.Second+500*time.Millisecond, got)

	got, err = Coerce("08:15", mapping.TypeTime)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+15*time.Minute, got)

	_, err = Coerce("soon", mapping.TypeTime)
	assert.Error(t, err)
}

func TestCoerceStringsAndBools(t *testing.T) {
	got, err := Coerce(json.Number("12.50"), mapping.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "12.50", got)

	got, err = Coerce(true, mapping.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	got, err = Coerce("TRUE", mapping.TypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Coerce(json.Number("0"), mapping.TypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = Coerce("maybe", mapping.TypeBoolean)
	assert.Error(t, err)
}

func TestCoerceUUIDAndBytes(t *testing.T) {
	got, err := Coerce("6BA7B810-9DAD-11D1-80B4-00C04FD430C8", mapping.TypeUUID)
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", got)

	_, err = Coerce("not-a-uuid", mapping.TypeUUID)
	assert.Error(t, err)

	got, err = Coerce("aGVsbG8=", mapping.TypeByte)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got, err = Coerce("aGVsbG8", mapping.TypeByte)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	_, err = Coerce("%%%", mapping.TypeByte)
	assert.Error(t, err)
}

func TestCoerceGeometry(t *testing.T) {
	got, err := Coerce("POINT (30 10)", mapping.TypeGeometry)
	require.NoError(t, err)
	geom, err := catalog.DecodeGeometry(got.([]byte))
	require.NoError(t, err)
	assert.Equal(t, orb.Point{30, 10}, geom)

	got, err = Coerce(`{"type": "Point", "coordinates": [1.5, 2.5]}`, mapping.TypeGeometry)
	require.NoError(t, err)
	geom, err = catalog.DecodeGeometry(got.([]byte))
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1.5, 2.5}, geom)

	_, err = Coerce("POINT (", mapping.TypeGeometry)
	assert.Error(t, err)
}

func TestCoerceNil(t *testing.T) {
	for _, typ := range []mapping.ScalarType{mapping.TypeLong, mapping.TypeTimestamp, mapping.TypeGeometry, mapping.TypeString} {
		got, err := Coerce(nil, typ)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}
