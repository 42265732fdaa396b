package vm

import (
	"strconv"
	"strings"
)

// NumberKind orders the numeric kinds for promotion: Bool < Int < Float.
type NumberKind uint8

const (
	Bool NumberKind = iota
	Int
	Float
)

var numberKindNames = [...]string{
	Bool:  "Bool",
	Int:   "Int",
	Float: "Float",
}

func (k NumberKind) String() string {
	if int(k) < len(numberKindNames) {
		return numberKindNames[k]
	}
	return "Number(" + strconv.Itoa(int(k)) + ")"
}

// Number is a scalar numeric value. Bool and Int are held in I, Float in F.
type Number struct {
	Kind NumberKind
	I    int64
	F    float64
}

// BoolNumber returns a Bool number.
func BoolNumber(b bool) Number {
	if b {
		return Number{Kind: Bool, I: 1}
	}
	return Number{Kind: Bool}
}

// IntNumber returns an Int number.
func IntNumber(i int64) Number {
	return Number{Kind: Int, I: i}
}

// FloatNumber returns a Float number.
func FloatNumber(f float64) Number {
	return Number{Kind: Float, F: f}
}

// Truth is the nonzero test used when casting to Bool.
func (n Number) Truth() bool {
	if n.Kind == Float {
		return n.F != 0
	}
	return n.I != 0
}

// Cast converts n to kind k. Float to Int truncates.
func (n Number) Cast(k NumberKind) Number {
	if n.Kind == k {
		return n
	}
	switch k {
	case Bool:
		return BoolNumber(n.Truth())
	case Int:
		if n.Kind == Float {
			return IntNumber(int64(n.F))
		}
		return IntNumber(n.I)
	default:
		return FloatNumber(float64(n.I))
	}
}

// promote returns the result kind of a binary operation.
func promote(a, b NumberKind) NumberKind {
	return max(a, b)
}

// String formats n the way PRINT shows it.
func (n Number) String() string {
	switch n.Kind {
	case Bool:
		if n.I != 0 {
			return "TRUE"
		}
		return "FALSE"
	case Int:
		return strconv.FormatInt(n.I, 10)
	default:
		return formatFloat(n.F)
	}
}

// formatFloat keeps a trailing ".0" on integral values so floats stay
// distinguishable from ints in output.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".nN") {
		s += ".0"
	}
	return s
}
