package smalivm

import (
	"fmt"
	"math"
	"strconv"

	dex "github.com/speakeasy-api/simplify"
)

// Kind classifies abstract values.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPrimitive
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// HeapID identifies an object in a heap. Zero is the null reference.
type HeapID uint32

// Reasons attached to unknown values.
const (
	ReasonParameter      = "parameter"
	ReasonMerged         = "merged-divergent-paths"
	ReasonUnsupported    = "unsupported-opcode-result"
	ReasonOpaqueCall     = "opaque-call-result"
	ReasonStaticField    = "static-field"
	ReasonClobbered      = "heap-clobbered"
	ReasonBudget         = "budget-exceeded"
	ReasonUninitialized  = "uninitialized"
	ReasonArithmetic     = "arithmetic-on-unknown"
	ReasonUnknownElement = "unknown-array-element"
	ReasonCaught         = "caught-exception"
)

// Value is an abstract register or field value: a known primitive (raw
// two's-complement or IEEE bits), a known reference (0 is null) or an
// unknown of a given type.
type Value struct {
	Kind   Kind
	Type   string
	Bits   uint64
	Ref    HeapID
	Reason string

	// seed carries entry-state literals until they are materialized in a heap.
	seed *seed
}

type seed struct {
	text   string
	object bool
}

// UnknownMarker in an InitialState leaves a register or field unknown; its
// type is taken from the declaration.
var UnknownMarker = Value{Kind: KindUnknown, Reason: ReasonParameter}

func Int(v int32) Value { return Value{Kind: KindPrimitive, Type: dex.TypeInt, Bits: uint64(uint32(v))} }

func Long(v int64) Value { return Value{Kind: KindPrimitive, Type: dex.TypeLong, Bits: uint64(v)} }

func Float(v float32) Value {
	return Value{Kind: KindPrimitive, Type: dex.TypeFloat, Bits: uint64(math.Float32bits(v))}
}

func Double(v float64) Value {
	return Value{Kind: KindPrimitive, Type: dex.TypeDouble, Bits: math.Float64bits(v)}
}

func Boolean(v bool) Value {
	var b uint64
	if v {
		b = 1
	}
	return Value{Kind: KindPrimitive, Type: dex.TypeBoolean, Bits: b}
}

func Char(v uint16) Value { return Value{Kind: KindPrimitive, Type: dex.TypeChar, Bits: uint64(v)} }

// Primitive builds a known primitive of type t from a sign-extended value.
func Primitive(t string, v int64) Value {
	switch t {
	case dex.TypeLong, dex.TypeDouble:
		return Value{Kind: KindPrimitive, Type: t, Bits: uint64(v)}
	case dex.TypeChar:
		return Value{Kind: KindPrimitive, Type: t, Bits: uint64(uint16(v))}
	case dex.TypeBoolean:
		return Boolean(v != 0)
	default:
		return Value{Kind: KindPrimitive, Type: t, Bits: uint64(uint32(int32(v)))}
	}
}

// Null returns the null reference of type t.
func Null(t string) Value { return Value{Kind: KindReference, Type: t} }

// Reference returns a known non-null reference.
func Reference(t string, id HeapID) Value { return Value{Kind: KindReference, Type: t, Ref: id} }

// Unknown returns an unknown value of type t.
func Unknown(t, reason string) Value { return Value{Kind: KindUnknown, Type: t, Reason: reason} }

// StringSeed is an entry-state value holding a java.lang.String with the
// given contents.
func StringSeed(s string) Value {
	return Value{Kind: KindReference, Type: dex.TypeString, seed: &seed{text: s}}
}

// ObjectSeed is an entry-state value holding a non-null instance of class
// whose fields are unknown.
func ObjectSeed(class string) Value {
	return Value{Kind: KindReference, Type: class, seed: &seed{object: true}}
}

func (v Value) IsKnown() bool   { return v.Kind != KindUnknown }
func (v Value) IsUnknown() bool { return v.Kind == KindUnknown }

// IsNull reports whether v is certainly null. A known integer zero used as
// a reference is null.
func (v Value) IsNull() bool {
	switch v.Kind {
	case KindReference:
		return v.Ref == 0 && v.seed == nil
	case KindPrimitive:
		return v.Bits == 0
	}
	return false
}

// ObjectRef returns the heap id of a known non-null reference.
func (v Value) ObjectRef() (HeapID, bool) {
	if v.Kind == KindReference && v.Ref != 0 {
		return v.Ref, true
	}
	return 0, false
}

func (v Value) Int() int32       { return int32(uint32(v.Bits)) }
func (v Value) Long() int64      { return int64(v.Bits) }
func (v Value) Float() float32   { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) Double() float64  { return math.Float64frombits(v.Bits) }
func (v Value) Bool() bool       { return v.Bits != 0 }
func (v Value) IsWide() bool     { return dex.IsWide(v.Type) }
func (v Value) IsPrimitive() bool { return v.Kind == KindPrimitive }

// Same reports whether two values carry the same information. Unknowns of
// the same type are the same regardless of reason.
func (v Value) Same(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindPrimitive:
		return v.Bits == o.Bits && v.Type == o.Type
	case KindReference:
		return v.Ref == o.Ref && v.Type == o.Type
	default:
		return v.Type == o.Type
	}
}

// Covers reports whether v is at least as general as o: equal, or unknown.
func (v Value) Covers(o Value) bool {
	return v.Kind == KindUnknown || v.Same(o)
}

// Join merges two values observed on different paths. The type of the
// first value wins; only concreteness degrades.
func Join(a, b Value) Value {
	if a.Same(b) {
		return a
	}
	if a.Kind == KindUnknown && (a.Type == b.Type || b.Type == "") {
		return a
	}
	t := a.Type
	if t == "" {
		t = b.Type
	}
	if t != b.Type && dex.IsReference(t) && dex.IsReference(b.Type) {
		t = dex.TypeObject
	}
	return Unknown(t, ReasonMerged)
}

// zeroValue is the default value of a field or array element of type t.
func zeroValue(t string) Value {
	if dex.IsPrimitive(t) {
		return Primitive(t, 0)
	}
	return Null(t)
}

func (v Value) String() string {
	switch v.Kind {
	case KindPrimitive:
		switch v.Type {
		case dex.TypeLong:
			return strconv.FormatInt(v.Long(), 10) + "L"
		case dex.TypeFloat:
			return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32) + "f"
		case dex.TypeDouble:
			return strconv.FormatFloat(v.Double(), 'g', -1, 64) + "d"
		case dex.TypeBoolean:
			return strconv.FormatBool(v.Bool())
		case dex.TypeChar:
			return strconv.QuoteRune(rune(v.Bits))
		}
		return strconv.FormatInt(int64(v.Int()), 10)
	case KindReference:
		if v.seed != nil {
			if v.seed.object {
				return "seed:" + v.Type
			}
			return "seed:" + strconv.Quote(v.seed.text)
		}
		if v.Ref == 0 {
			return "null"
		}
		return fmt.Sprintf("%s@%d", v.Type, v.Ref)
	default:
		if v.Type == "" {
			return "?(" + v.Reason + ")"
		}
		return fmt.Sprintf("?%s(%s)", v.Type, v.Reason)
	}
}
