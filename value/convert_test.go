package value

import (
	"database/sql"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type celsius float64

type opaque struct {
	A int
	B string
}

type stringerCell struct{ label string }

func (s stringerCell) String() string { return "cell:" + s.label }

type brokenCell struct{}

func (brokenCell) String() string { panic("cannot render") }

func TestConvertNull(t *testing.T) {
	assert.True(t, Convert(nil).IsNull())

	var p *int64
	assert.True(t, Convert(p).IsNull())

	assert.True(t, Convert(sql.NullString{}).IsNull())
	assert.True(t, Convert(sql.NullInt64{}).IsNull())
}

func TestConvertSignedIntegers(t *testing.T) {
	cases := []struct {
		name   string
		native any
		want   int64
	}{
		{"int8", int8(-8), -8},
		{"int16", int16(-1600), -1600},
		{"int32", int32(math.MinInt32), math.MinInt32},
		{"int64", int64(math.MaxInt64), math.MaxInt64},
		{"int", int(42), 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Convert(tc.native)
			require.Equal(t, KindInt, v.Kind())
			got, ok := v.AsInt()
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConvertUnsignedBoundary(t *testing.T) {
	v := Convert(uint64(math.MaxInt64))
	got, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), got)

	v = Convert(uint64(math.MaxInt64) + 1)
	s, ok := v.AsString()
	require.True(t, ok, "values above 2^63-1 fall back to a decimal string")
	assert.Equal(t, "9223372036854775808", s)

	v = Convert(uint64(math.MaxUint64))
	s, _ = v.AsString()
	assert.Equal(t, "18446744073709551615", s)

	got, ok = Convert(uint32(math.MaxUint32)).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(math.MaxUint32), got)

	got, ok = Convert(uint8(255)).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(255), got)
}

func TestConvertBigNumbers(t *testing.T) {
	got, ok := Convert(big.NewInt(-77)).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(-77), got)

	huge, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	s, ok := Convert(huge).AsString()
	require.True(t, ok)
	assert.Equal(t, "170141183460469231731687303715884105727", s)

	f, ok := Convert(big.NewRat(1, 4)).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 0.25, f)
}

func TestConvertFloats(t *testing.T) {
	f, ok := Convert(float32(1.5)).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	f, ok = Convert(math.Pi).AsFloat()
	require.True(t, ok)
	assert.Equal(t, math.Pi, f)

	f, ok = Convert(celsius(21.5)).AsFloat()
	require.True(t, ok, "named float types keep their numeric value")
	assert.Equal(t, 21.5, f)
}

func TestConvertTemporalAndIdentifiers(t *testing.T) {
	ts := time.Date(2024, 3, 9, 17, 4, 5, 123000000, time.FixedZone("", 2*60*60))
	s, ok := Convert(ts).AsString()
	require.True(t, ok)
	assert.Equal(t, "2024-03-09T17:04:05.123+02:00", s)

	parsed, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))

	f, ok := Convert(90 * time.Second).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 90.0, f)

	id := uuid.MustParse("0b8f3c5e-6a51-4d0f-9a8e-52a9b1c3f7d2")
	s, ok = Convert(id).AsString()
	require.True(t, ok)
	assert.Equal(t, "0b8f3c5e-6a51-4d0f-9a8e-52a9b1c3f7d2", s)
}

func TestConvertBytesAreCopied(t *testing.T) {
	buf := []byte{1, 2, 3}
	v := Convert(buf)
	buf[0] = 9

	got, ok := v.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got, ok = Convert(sql.RawBytes("hi")).AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), got)
}

func TestConvertArrays(t *testing.T) {
	assert.Equal(t, Int32Array([]int32{1, 2}), Convert([]int32{1, 2}))
	assert.Equal(t, Int64Array([]int64{1, 2}), Convert([]int{1, 2}))
	assert.Equal(t, Float32Array([]float32{0.5}), Convert([]float32{0.5}))
	assert.Equal(t, Float64Array([]float64{0.5}), Convert([]float64{0.5}))
	assert.Equal(t, StringArray([]string{"a"}), Convert([]string{"a"}))

	assert.Equal(t, Int64Array([]int64{1, 2, 3}), Convert([]any{int32(1), int64(2), uint8(3)}))
	assert.Equal(t, StringArray([]string{"x", "y"}), Convert([]any{"x", "y"}))
	assert.Equal(t, StringArray([]string{}), Convert([]any{}))

	mixed := Convert([]any{int64(1), "two"})
	require.Equal(t, KindString, mixed.Kind(), "mixed lists fall back to their string form")
	s, _ := mixed.AsString()
	assert.Equal(t, "[1 two]", s)
}

func TestConvertValuerAndPointers(t *testing.T) {
	assert.Equal(t, String("abc"), Convert(sql.NullString{String: "abc", Valid: true}))
	assert.Equal(t, Int(7), Convert(sql.NullInt64{Int64: 7, Valid: true}))

	n := int64(12)
	assert.Equal(t, Int(12), Convert(&n))

	s := "ptr"
	assert.Equal(t, String("ptr"), Convert(&s))
}

func TestConvertFallback(t *testing.T) {
	assert.Equal(t, String("cell:a1"), Convert(stringerCell{label: "a1"}))
	assert.Equal(t, String("{3 x}"), Convert(opaque{A: 3, B: "x"}))

	v := Convert(brokenCell{})
	assert.True(t, v.IsNull(), "a value whose rendering panics becomes null")

	m := Convert(map[string]int{"k": 1})
	assert.Equal(t, KindString, m.Kind())
}

func TestConvertPassesValuesThrough(t *testing.T) {
	v := Float(2.5)
	assert.Equal(t, v, Convert(v))
}
