package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// wireValue is the tagged JSON form of a Value: {"type":"int","value":42}.
type wireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the value in its tagged form. Non-finite floats are
// written as the strings "NaN", "+Inf" and "-Inf".
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNull {
		return []byte(`{"type":"null"}`), nil
	}
	var payload any = v.v
	switch v.kind {
	case KindFloat:
		payload = jsonFloat(v.v.(float64))
	case KindFloat32Array:
		arr := v.v.([]float32)
		out := make([]any, len(arr))
		for i, f := range arr {
			out[i] = jsonFloat(float64(f))
		}
		payload = out
	case KindFloat64Array:
		arr := v.v.([]float64)
		out := make([]any, len(arr))
		for i, f := range arr {
			out[i] = jsonFloat(f)
		}
		payload = out
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s value: %w", v.kind, err)
	}
	return json.Marshal(wireValue{Type: v.kind.String(), Value: raw})
}

func jsonFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// UnmarshalJSON accepts the tagged form as well as bare JSON scalars and
// arrays, so that callers can send plain parameter maps such as {"id": 42}.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wire wireValue
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return fmt.Errorf("failed to unmarshal tagged value: %w", err)
		}
		if wire.Type == "" {
			return fmt.Errorf("tagged value is missing its type")
		}
		decoded, err := decodeTagged(wire)
		if err != nil {
			return err
		}
		*v = decoded
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	decoded, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func decodeTagged(wire wireValue) (Value, error) {
	kind, ok := parseKind(wire.Type)
	if !ok {
		return Null(), fmt.Errorf("unknown value type %q", wire.Type)
	}
	if kind == KindNull {
		return Null(), nil
	}
	if len(wire.Value) == 0 {
		return Null(), fmt.Errorf("%s value is missing its payload", kind)
	}

	var err error
	var out Value
	switch kind {
	case KindString:
		var s string
		err = json.Unmarshal(wire.Value, &s)
		out = String(s)
	case KindInt:
		var i int64
		err = json.Unmarshal(wire.Value, &i)
		out = Int(i)
	case KindFloat:
		var f float64
		f, err = decodeFloat(wire.Value)
		out = Float(f)
	case KindBool:
		var b bool
		err = json.Unmarshal(wire.Value, &b)
		out = Bool(b)
	case KindBytes:
		var b []byte
		err = json.Unmarshal(wire.Value, &b)
		out = Bytes(b)
	case KindInt32Array:
		var a []int32
		err = json.Unmarshal(wire.Value, &a)
		out = Int32Array(a)
	case KindInt64Array:
		var a []int64
		err = json.Unmarshal(wire.Value, &a)
		out = Int64Array(a)
	case KindFloat32Array:
		var items []json.RawMessage
		err = json.Unmarshal(wire.Value, &items)
		a := make([]float32, len(items))
		for i := 0; err == nil && i < len(items); i++ {
			var f float64
			f, err = decodeFloat(items[i])
			a[i] = float32(f)
		}
		out = Float32Array(a)
	case KindFloat64Array:
		var items []json.RawMessage
		err = json.Unmarshal(wire.Value, &items)
		a := make([]float64, len(items))
		for i := 0; err == nil && i < len(items); i++ {
			a[i], err = decodeFloat(items[i])
		}
		out = Float64Array(a)
	case KindStringArray:
		var a []string
		err = json.Unmarshal(wire.Value, &a)
		out = StringArray(a)
	}
	if err != nil {
		return Null(), fmt.Errorf("failed to decode %s value: %w", kind, err)
	}
	return out, nil
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "+Inf", "Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("invalid float %q", s)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

func fromJSON(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		if !strings.ContainsAny(v.String(), ".eE") {
			if i, err := v.Int64(); err == nil {
				return Int(i), nil
			}
		}
		f, err := v.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", v, err)
		}
		return Float(f), nil
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			converted, err := fromJSON(item)
			if err != nil {
				return Null(), err
			}
			items[i] = converted
		}
		if arr, ok := fromList(items); ok {
			return arr, nil
		}
		return Null(), fmt.Errorf("array elements must share one of int, float or string")
	}
	return Null(), fmt.Errorf("unsupported JSON value of type %T", raw)
}

// MarshalJSON encodes the row as an object whose keys follow column order.
// Duplicate column names are written as repeated keys.
func (r Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object into a Row, keeping key order and
// repeated keys.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	row := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected row key %v", tok)
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		row = append(row, Field{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}
