package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Value is a sealed interface over the primitive column values a row may hold.
// Only Null, Text, Int, Real and Bool implement it. JSON payloads (topic
// lists, tags) are stored as Text.
type Value interface {
	value() // Sealed - only these types implement it

	// Kind reports the variant of the value.
	Kind() Kind

	// SQL returns the database/sql driver representation.
	SQL() any
}

// Kind identifies a Value variant and a column's declared type.
type Kind string

const (
	KindNull Kind = "null"
	KindText Kind = "text"
	KindInt  Kind = "int"
	KindReal Kind = "real"
	KindBool Kind = "bool"
)

// Null is an absent column value.
type Null struct{}

func (Null) value() {}
func (Null) Kind() Kind { return KindNull }
func (Null) SQL() any { return nil }

// Text is a string column value.
type Text string

func (Text) value() {}
func (Text) Kind() Kind { return KindText }
func (t Text) SQL() any { return string(t) }

// Int is an integer column value. Always int64.
type Int int64

func (Int) value() {}
func (Int) Kind() Kind { return KindInt }
func (i Int) SQL() any { return int64(i) }

// Real is a floating point column value. NaN and infinities are rejected
// when encoding.
type Real float64

func (Real) value() {}
func (Real) Kind() Kind { return KindReal }
func (r Real) SQL() any { return float64(r) }

// Bool is a boolean column value. SQLite stores it as 0/1.
type Bool bool

func (Bool) value() {}
func (Bool) Kind() Kind { return KindBool }
func (b Bool) SQL() any {
	if b {
		return int64(1)
	}
	return int64(0)
}

// IntOf converts any Go integer into an Int.
func IntOf[T constraints.Integer](n T) Int {
	return Int(int64(n))
}

// RealOf converts any Go float into a Real.
func RealOf[T constraints.Float](f T) Real {
	return Real(float64(f))
}

// FromSQL converts a value scanned from database/sql into a Value.
func FromSQL(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return Text(val), nil
	case []byte:
		return Text(string(val)), nil
	case int64:
		return Int(val), nil
	case int:
		return IntOf(val), nil
	case int32:
		return IntOf(val), nil
	case float64:
		return Real(val), nil
	case float32:
		return RealOf(val), nil
	case bool:
		return Bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported column value type: %T", v)
	}
}

// FromGo converts plain Go values (as produced by encoders and flag parsing)
// into a Value. It accepts the same types as FromSQL.
func FromGo(v any) (Value, error) {
	if val, ok := v.(Value); ok {
		return val, nil
	}
	return FromSQL(v)
}

// Go returns the plain Go representation used by encoders that do not know
// about Value (CUE, text output).
func Go(v Value) any {
	switch val := v.(type) {
	case Null, nil:
		return nil
	case Text:
		return string(val)
	case Int:
		return int64(val)
	case Real:
		return float64(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// Equal reports whether two values have the same variant and content.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a.Kind() == b.Kind() && Go(a) == Go(b)
}

// String renders a value for human-readable output.
func String(v Value) string {
	switch val := v.(type) {
	case Null, nil:
		return "NULL"
	case Text:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Real:
		return formatReal(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatReal always keeps a fractional marker so the value decodes back as
// Real rather than Int.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func checkReal(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("real value %v cannot be encoded", f)
	}
	return nil
}
