package record

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// Row maps column names to values. Rows are owned by their table; relations
// between tables are plain key columns resolved by query.
type Row map[string]Value

// SortedKeys returns column names in byte order for deterministic iteration.
func (r Row) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a shallow copy. Values are immutable so this is a full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the value for a column, Null if absent.
func (r Row) Get(column string) Value {
	if v, ok := r[column]; ok && v != nil {
		return v
	}
	return Null{}
}

// MarshalJSON writes the row with sorted keys so exports are byte-stable.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(r[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for column %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object into a row. Nested arrays and
// objects are rejected: structured payloads must already be stringified.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = make(Row, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("column %q: %w", k, err)
		}
		(*r)[k] = val
	}
	return nil
}

// MarshalValue encodes a single value.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null, nil:
		return []byte("null"), nil
	case Text:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Real:
		if err := checkReal(float64(val)); err != nil {
			return nil, err
		}
		return []byte(formatReal(float64(val))), nil
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// UnmarshalValue decodes a JSON scalar. Numbers without a fraction or
// exponent become Int, others Real.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return Text(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[', '{':
		return nil, fmt.Errorf("nested JSON is not a column value: %s", truncate(string(data)))

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		s := string(n)
		if strings.ContainsAny(s, ".eE") {
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid real %s: %w", s, err)
			}
			return Real(f), nil
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer out of int64 range: %s", s)
		}
		return Int(i), nil
	}
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
