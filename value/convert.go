package value

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Convert maps a value returned by a database driver to a Value. It never
// fails: types without a direct mapping fall back to their string rendering,
// and if even that panics the result is Null.
func Convert(native any) Value {
	switch v := native.(type) {
	case nil:
		return Null()
	case Value:
		return v

	case string:
		return String(v)

	case int64:
		return Int(v)
	case int:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int8:
		return Int(int64(v))

	case uint64:
		return fromUint64(v)
	case uint:
		return fromUint64(uint64(v))
	case uintptr:
		return fromUint64(uint64(v))
	case uint32:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint8:
		return Int(int64(v))

	case *big.Int:
		if v == nil {
			return Null()
		}
		return fromBigInt(v)
	case big.Int:
		return fromBigInt(&v)

	case float64:
		return Float(v)
	case float32:
		return Float(float64(v))
	case *big.Float:
		if v == nil {
			return Null()
		}
		f, _ := v.Float64()
		return Float(f)
	case *big.Rat:
		if v == nil {
			return Null()
		}
		f, _ := v.Float64()
		return Float(f)

	case bool:
		return Bool(v)

	case uuid.UUID:
		return String(v.String())
	case time.Time:
		return String(v.Format(time.RFC3339Nano))
	case time.Duration:
		return Float(v.Seconds())

	case []byte:
		return Bytes(append([]byte(nil), v...))
	case sql.RawBytes:
		return Bytes(append([]byte(nil), v...))
	case []int32:
		return Int32Array(v)
	case []int64:
		return Int64Array(v)
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return Int64Array(out)
	case []float32:
		return Float32Array(v)
	case []float64:
		return Float64Array(v)
	case []string:
		return StringArray(v)
	case []any:
		if arr, ok := fromList(v); ok {
			return arr
		}
		return fallback(native)

	case driver.Valuer:
		return fromValuer(v)
	}

	rv := reflect.ValueOf(native)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
		return Convert(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromUint64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.String:
		return String(rv.String())
	}
	return fallback(native)
}

// fromUint64 keeps values up to math.MaxInt64 as integers; anything larger
// cannot be represented and is returned as its decimal string.
func fromUint64(v uint64) Value {
	if v <= math.MaxInt64 {
		return Int(int64(v))
	}
	return String(strconv.FormatUint(v, 10))
}

func fromBigInt(v *big.Int) Value {
	if v.IsInt64() {
		return Int(v.Int64())
	}
	return String(v.String())
}

// fromList converts driver list values when every element maps to the same
// scalar kind.
func fromList(items []any) (Value, bool) {
	if len(items) == 0 {
		return StringArray([]string{}), true
	}
	converted := make([]Value, len(items))
	for i, item := range items {
		converted[i] = Convert(item)
	}
	switch converted[0].kind {
	case KindInt:
		out := make([]int64, len(converted))
		for i, c := range converted {
			n, ok := c.AsInt()
			if !ok {
				return Null(), false
			}
			out[i] = n
		}
		return Int64Array(out), true
	case KindFloat:
		out := make([]float64, len(converted))
		for i, c := range converted {
			f, ok := c.AsFloat()
			if !ok {
				return Null(), false
			}
			out[i] = f
		}
		return Float64Array(out), true
	case KindString:
		out := make([]string, len(converted))
		for i, c := range converted {
			s, ok := c.AsString()
			if !ok {
				return Null(), false
			}
			out[i] = s
		}
		return StringArray(out), true
	}
	return Null(), false
}

func fromValuer(v driver.Valuer) (result Value) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Null()
	}
	defer func() {
		if r := recover(); r != nil {
			result = fallback(v)
		}
	}()
	inner, err := v.Value()
	if err != nil {
		return fallback(v)
	}
	if _, again := inner.(driver.Valuer); again {
		return fallback(inner)
	}
	return Convert(inner)
}

// fallback renders values of unsupported types as strings. Stringer and
// error implementations are called directly so that a panic inside them is
// observed here rather than swallowed by fmt.
func fallback(native any) (result Value) {
	typeName := fmt.Sprintf("%T", native)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Failed to convert value, returning null", "component", "value", "type", typeName, "error", r)
			result = Null()
		}
	}()

	var rendered string
	switch v := native.(type) {
	case fmt.Stringer:
		rendered = v.String()
	case error:
		rendered = v.Error()
	default:
		rendered = fmt.Sprint(native)
	}
	slog.Info("Unsupported value type, converting to string", "component", "value", "type", typeName, "value", rendered)
	return String(rendered)
}
