// Package columnar provides the typed vectors and tables that back storage.
package columnar

import (
	"fmt"
	"strings"
)

// ScalarType represents the declared type of a column
type ScalarType int

const (
	Float ScalarType = iota
	Int
	Bool
	Enum
)

// String returns the lower-case name used in registry files
func (t ScalarType) String() string {
	switch t {
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Enum:
		return "enum"
	default:
		return fmt.Sprintf("scalar(%d)", int(t))
	}
}

// ParseScalarType parses "float", "int", "bool" or "enum".
func ParseScalarType(s string) (ScalarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "float32", "float64":
		return Float, nil
	case "int", "integer", "int32", "int64":
		return Int, nil
	case "bool", "boolean":
		return Bool, nil
	case "enum", "enumeration":
		return Enum, nil
	}
	return Float, fmt.Errorf("unknown scalar type %q", s)
}

// Vector is a typed, fixed-length array of values. Every implementation
// exposes a float view of its values; booleans read as 0 or 1.
type Vector interface {
	Type() ScalarType
	Len() int
	Float(i int) float64
	Clone() Vector
}

// FloatVector stores float values
type FloatVector []float64

func (v FloatVector) Type() ScalarType    { return Float }
func (v FloatVector) Len() int            { return len(v) }
func (v FloatVector) Float(i int) float64 { return v[i] }
func (v FloatVector) Clone() Vector       { return append(FloatVector(nil), v...) }

// IntVector stores integer values
type IntVector []int64

func (v IntVector) Type() ScalarType    { return Int }
func (v IntVector) Len() int            { return len(v) }
func (v IntVector) Float(i int) float64 { return float64(v[i]) }
func (v IntVector) Clone() Vector       { return append(IntVector(nil), v...) }

// BoolVector stores boolean values
type BoolVector []bool

func (v BoolVector) Type() ScalarType { return Bool }
func (v BoolVector) Len() int         { return len(v) }
func (v BoolVector) Float(i int) float64 {
	if v[i] {
		return 1
	}
	return 0
}
func (v BoolVector) Clone() Vector { return append(BoolVector(nil), v...) }

// EnumVector stores small enumerated codes such as roles
type EnumVector []int16

func (v EnumVector) Type() ScalarType    { return Enum }
func (v EnumVector) Len() int            { return len(v) }
func (v EnumVector) Float(i int) float64 { return float64(v[i]) }
func (v EnumVector) Clone() Vector       { return append(EnumVector(nil), v...) }

// Ints returns the values of v as int64, converting if needed.
func Ints(v Vector) []int64 {
	return Convert(v, Int).(IntVector)
}
