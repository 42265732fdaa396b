package vm

import (
	"slices"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: detached view of a result
// ---------------------------------------------------------------------------

// ValueKind tags a Value.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueNumber
	ValueString
	ValueTuple
	ValueIntArray
	ValueFloatArray
	ValueNative
)

var valueKindNames = map[ValueKind]string{
	ValueNone:       "None",
	ValueNumber:     "Number",
	ValueString:     "String",
	ValueTuple:      "Tuple",
	ValueIntArray:   "IntArray",
	ValueFloatArray: "FloatArray",
	ValueNative:     "Native",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return "ValueKind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a copy of an interpreter value that does not reference the
// arena. Hosts use it to read results.
type Value struct {
	Kind   ValueKind
	Num    Number
	Str    string
	Items  []Value
	Ints   []int64
	Floats []float64
}

// TypeName returns the most specific type name: the number kind for
// numbers, the value kind otherwise.
func (v Value) TypeName() string {
	if v.Kind == ValueNumber {
		return v.Num.Kind.String()
	}
	return v.Kind.String()
}

// String formats v the way PRINT shows a single value.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return v.Num.String()
	case ValueString:
		return v.Str
	case ValueTuple:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ValueIntArray:
		parts := make([]string, len(v.Ints))
		for i, n := range v.Ints {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case ValueFloatArray:
		parts := make([]string, len(v.Floats))
		for i, f := range v.Floats {
			parts[i] = formatFloat(f)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case ValueNative:
		return "<native " + v.Str + ">"
	}
	return ""
}

// ValueOf copies the value of the token at h. Symbols are dereferenced; an
// unbound symbol is an error.
func (e *Env) ValueOf(h Handle) (Value, error) {
	if h.IsNil() {
		return Value{}, nil
	}
	a := e.Arena
	t := a.Get(h)
	switch t.Kind {
	case TokenNumber:
		return Value{Kind: ValueNumber, Num: t.Num}, nil
	case TokenString:
		return Value{Kind: ValueString, Str: t.Text.String()}, nil
	case TokenSymbol:
		if t.Sym.Res == nil {
			return Value{}, NewError(ErrUninitializedSymbol, t.Pos, "%s", t.Sym)
		}
		return ResourceValue(t.Sym.Res), nil
	case TokenResource:
		return ResourceValue(t.Res), nil
	case TokenParen, TokenTuple:
		v := Value{Kind: ValueTuple}
		for c := a.Begin(t.Children); !c.IsNil(); c = a.Right(c) {
			item, err := e.ValueOf(c)
			if err != nil {
				return Value{}, err
			}
			v.Items = append(v.Items, item)
		}
		return v, nil
	}
	return Value{}, NewError(ErrCastFailed, t.Pos, "%s has no value", e.describe(h))
}

// ResourceValue copies the payload of r.
func ResourceValue(r *Resource) Value {
	switch r.Kind {
	case ResNumber:
		return Value{Kind: ValueNumber, Num: r.Num}
	case ResString:
		return Value{Kind: ValueString, Str: r.Text.String()}
	case ResIntArray:
		return Value{Kind: ValueIntArray, Ints: slices.Clone(r.Ints)}
	case ResFloatArray:
		return Value{Kind: ValueFloatArray, Floats: slices.Clone(r.Floats)}
	case ResNative:
		return Value{Kind: ValueNative, Str: r.Name}
	}
	return Value{}
}
