// Package value defines the dynamic value type that carries parameters and
// result cells across the bridge, independent of any database driver.
package value

import (
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindBytes
	KindInt32Array
	KindInt64Array
	KindFloat32Array
	KindFloat64Array
	KindStringArray
)

var kindNames = [...]string{
	KindNull:         "null",
	KindString:       "string",
	KindInt:          "int",
	KindFloat:        "float",
	KindBool:         "bool",
	KindBytes:        "bytes",
	KindInt32Array:   "int32_array",
	KindInt64Array:   "int64_array",
	KindFloat32Array: "float32_array",
	KindFloat64Array: "float64_array",
	KindStringArray:  "string_array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func parseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindNull, false
}

// Value is a closed tagged union over the kinds above. The zero Value is Null.
type Value struct {
	kind Kind
	v    any
}

func Null() Value                    { return Value{} }
func String(s string) Value          { return Value{kind: KindString, v: s} }
func Int(i int64) Value              { return Value{kind: KindInt, v: i} }
func Float(f float64) Value          { return Value{kind: KindFloat, v: f} }
func Bool(b bool) Value              { return Value{kind: KindBool, v: b} }
func Bytes(b []byte) Value           { return Value{kind: KindBytes, v: b} }
func Int32Array(a []int32) Value     { return Value{kind: KindInt32Array, v: a} }
func Int64Array(a []int64) Value     { return Value{kind: KindInt64Array, v: a} }
func Float32Array(a []float32) Value { return Value{kind: KindFloat32Array, v: a} }
func Float64Array(a []float64) Value { return Value{kind: KindFloat64Array, v: a} }
func StringArray(a []string) Value   { return Value{kind: KindStringArray, v: a} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

func (v Value) AsInt() (int64, bool) {
	i, ok := v.v.(int64)
	return i, ok
}

func (v Value) AsFloat() (float64, bool) {
	f, ok := v.v.(float64)
	return f, ok
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.v.([]byte)
	return b, ok
}

func (v Value) AsInt32Array() ([]int32, bool) {
	a, ok := v.v.([]int32)
	return a, ok
}

func (v Value) AsInt64Array() ([]int64, bool) {
	a, ok := v.v.([]int64)
	return a, ok
}

func (v Value) AsFloat32Array() ([]float32, bool) {
	a, ok := v.v.([]float32)
	return a, ok
}

func (v Value) AsFloat64Array() ([]float64, bool) {
	a, ok := v.v.([]float64)
	return a, ok
}

func (v Value) AsStringArray() ([]string, bool) {
	a, ok := v.v.([]string)
	return a, ok
}

// Interface returns the native Go value suitable for passing to a
// database/sql driver. Null maps to nil, which drivers bind as SQL NULL.
func (v Value) Interface() any {
	if v.kind == KindNull {
		return nil
	}
	return v.v
}

// String renders the value for humans and logs.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "<null>"
	case KindString:
		return v.v.(string)
	case KindBytes:
		return fmt.Sprintf("%x", v.v)
	default:
		return fmt.Sprint(v.v)
	}
}

// Params maps parameter names to values. Names are case-sensitive and are
// used as given; a nil or empty map means nothing is bound.
type Params map[string]Value

// Field is one named cell of a Row.
type Field struct {
	Name  string
	Value Value
}

// Row holds the cells of one result row in driver column order. Duplicate
// column names are kept.
type Row []Field

// Get returns the value of the first column named name.
func (r Row) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Null(), false
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// RowSet is the ordered result of a query.
type RowSet []Row
