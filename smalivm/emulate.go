package smalivm

import (
	"strconv"
	"strings"
	"unicode/utf16"

	dex "github.com/speakeasy-api/simplify"
)

// callSite is an emulated call in progress. c is the owned fallthrough
// context.
type callSite struct {
	e    *eval
	c    *Context
	ref  dex.MethodRef
	args []Value
}

// emulator runs a platform method natively. It reports false when the
// arguments are too unknown to emulate; the call is then opaque.
type emulator func(x *callSite) bool

func (x *callSite) str(i int) (string, bool) { return x.c.StringValue(x.args[i]) }

func (x *callSite) object(i int) (*Object, HeapID, bool) {
	id, ok := x.args[i].ObjectRef()
	if !ok {
		return nil, 0, false
	}
	o, ok := x.c.Heap.Object(id)
	return o, id, ok
}

// returns completes the call with v as its result.
func (x *callSite) returns(v Value) bool {
	x.c.Result = &v
	x.e.proceed(x.c)
	return true
}

func (x *callSite) returnVoid() bool {
	x.e.proceed(x.c)
	return true
}

func (x *callSite) throws(typ string) bool {
	x.e.raise(typ)
	return true
}

// newString allocates a computed string.
func (x *callSite) newString(s string) Value {
	return x.e.b.run.newObject(x.c, &Object{Class: dex.TypeString, Exact: true, Text: s, HasText: true})
}

func (x *callSite) unknown() bool {
	return x.returns(Unknown(x.ref.Return, ReasonArithmetic))
}

func units(s string) []uint16 { return utf16.Encode([]rune(s)) }

func fromUnits(u []uint16) string { return string(utf16.Decode(u)) }

// javaHash is String.hashCode over UTF-16 code units.
func javaHash(s string) int32 {
	var h int32
	for _, u := range units(s) {
		h = 31*h + int32(u)
	}
	return h
}

var primitiveNames = map[string]string{
	dex.TypeBoolean: "boolean",
	dex.TypeByte:    "byte",
	dex.TypeShort:   "short",
	dex.TypeChar:    "char",
	dex.TypeInt:     "int",
	dex.TypeLong:    "long",
	dex.TypeFloat:   "float",
	dex.TypeDouble:  "double",
	dex.TypeVoid:    "void",
}

const (
	integerValue = "value:I"
	typeInteger  = "Ljava/lang/Integer;"
	typeMath     = "Ljava/lang/Math;"
)

var emulators = map[string]emulator{}

func emulate(sig string, fn emulator) { emulators[sig] = fn }

// appendText emulates StringBuilder.append with the textual form of arg.
func appendText(render func(v Value) (string, bool)) emulator {
	return func(x *callSite) bool {
		o, id, ok := x.object(0)
		if !ok {
			return false
		}
		s, known := render(x.args[1])
		n := o.clone()
		if known && o.HasText {
			n.Text += s
		} else {
			n.Text, n.HasText, n.Opaque = "", false, true
		}
		x.c.heap().setObject(id, n)
		return x.returns(x.args[0])
	}
}

func init() {
	// java.lang.Object
	emulate("Ljava/lang/Object;-><init>()V", func(x *callSite) bool { return x.returnVoid() })

	// java.lang.String
	emulate("Ljava/lang/String;-><init>()V", func(x *callSite) bool {
		_, id, ok := x.object(0)
		if !ok {
			return false
		}
		x.c.heap().setObject(id, &Object{Class: dex.TypeString, Exact: true, HasText: true})
		return x.returnVoid()
	})
	emulate("Ljava/lang/String;-><init>(Ljava/lang/String;)V", func(x *callSite) bool {
		_, id, ok := x.object(0)
		s, known := x.str(1)
		if !ok || !known {
			return false
		}
		x.c.heap().setObject(id, &Object{Class: dex.TypeString, Exact: true, Text: s, HasText: true})
		return x.returnVoid()
	})
	emulate("Ljava/lang/String;-><init>([C)V", func(x *callSite) bool {
		_, id, ok := x.object(0)
		arr, _, known := x.object(1)
		if !ok || !known || arr.Elems == nil {
			return false
		}
		u := make([]uint16, len(arr.Elems))
		for i, el := range arr.Elems {
			if !el.IsPrimitive() {
				return false
			}
			u[i] = uint16(el.Bits)
		}
		x.c.heap().setObject(id, &Object{Class: dex.TypeString, Exact: true, Text: fromUnits(u), HasText: true})
		return x.returnVoid()
	})
	emulate("Ljava/lang/String;->length()I", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		return x.returns(Int(int32(len(units(s)))))
	})
	emulate("Ljava/lang/String;->isEmpty()Z", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		return x.returns(Boolean(s == ""))
	})
	emulate("Ljava/lang/String;->hashCode()I", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		return x.returns(Int(javaHash(s)))
	})
	emulate("Ljava/lang/String;->charAt(I)C", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok || !x.args[1].IsPrimitive() {
			return false
		}
		u, i := units(s), x.args[1].Int()
		if i < 0 || int(i) >= len(u) {
			return x.throws(dex.ExcStringIndex)
		}
		return x.returns(Char(u[i]))
	})
	emulate("Ljava/lang/String;->equals(Ljava/lang/Object;)Z", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		arg := x.args[1]
		if arg.IsNull() {
			return x.returns(Boolean(false))
		}
		if t, ok := x.str(1); ok {
			return x.returns(Boolean(s == t))
		}
		if o, ok := x.c.Object(arg); ok && o.Class != dex.TypeString {
			return x.returns(Boolean(false))
		}
		return false
	})
	emulate("Ljava/lang/String;->concat(Ljava/lang/String;)Ljava/lang/String;", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		if x.args[1].IsNull() {
			return x.throws(dex.ExcNullPointer)
		}
		t, ok := x.str(1)
		if !ok {
			return false
		}
		return x.returns(x.newString(s + t))
	})
	substring := func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok || !x.args[1].IsPrimitive() {
			return false
		}
		u := units(s)
		begin, end := int(x.args[1].Int()), len(u)
		if len(x.args) > 2 {
			if !x.args[2].IsPrimitive() {
				return false
			}
			end = int(x.args[2].Int())
		}
		if begin < 0 || end > len(u) || begin > end {
			return x.throws(dex.ExcStringIndex)
		}
		return x.returns(x.newString(fromUnits(u[begin:end])))
	}
	emulate("Ljava/lang/String;->substring(I)Ljava/lang/String;", substring)
	emulate("Ljava/lang/String;->substring(II)Ljava/lang/String;", substring)
	emulate("Ljava/lang/String;->indexOf(Ljava/lang/String;)I", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		if x.args[1].IsNull() {
			return x.throws(dex.ExcNullPointer)
		}
		t, ok := x.str(1)
		if !ok {
			return false
		}
		i := strings.Index(s, t)
		if i > 0 {
			i = len(units(s[:i]))
		}
		return x.returns(Int(int32(i)))
	})
	emulate("Ljava/lang/String;->indexOf(I)I", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok || !x.args[1].IsPrimitive() {
			return false
		}
		for i, u := range units(s) {
			if int32(u) == x.args[1].Int() {
				return x.returns(Int(int32(i)))
			}
		}
		return x.returns(Int(-1))
	})
	emulate("Ljava/lang/String;->intern()Ljava/lang/String;", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		return x.returns(x.e.b.run.internString(x.c, s))
	})
	emulate("Ljava/lang/String;->toCharArray()[C", func(x *callSite) bool {
		s, ok := x.str(0)
		if !ok {
			return false
		}
		u := units(s)
		elems := make([]Value, len(u))
		for i, c := range u {
			elems[i] = Char(c)
		}
		return x.returns(x.e.b.run.newObject(x.c, &Object{Class: "[C", Exact: true, Elems: elems}))
	})
	valueOf := func(render func(Value) string) emulator {
		return func(x *callSite) bool {
			if !x.args[0].IsPrimitive() {
				return x.unknown()
			}
			return x.returns(x.newString(render(x.args[0])))
		}
	}
	renderInt := func(v Value) string { return strconv.FormatInt(int64(v.Int()), 10) }
	renderLong := func(v Value) string { return strconv.FormatInt(v.Long(), 10) }
	renderBool := func(v Value) string { return strconv.FormatBool(v.Bool()) }
	renderChar := func(v Value) string { return fromUnits([]uint16{uint16(v.Bits)}) }
	emulate("Ljava/lang/String;->valueOf(I)Ljava/lang/String;", valueOf(renderInt))
	emulate("Ljava/lang/String;->valueOf(J)Ljava/lang/String;", valueOf(renderLong))
	emulate("Ljava/lang/String;->valueOf(Z)Ljava/lang/String;", valueOf(renderBool))
	emulate("Ljava/lang/String;->valueOf(C)Ljava/lang/String;", valueOf(renderChar))
	emulate("Ljava/lang/Integer;->toString(I)Ljava/lang/String;", valueOf(renderInt))

	// java.lang.StringBuilder
	initBuilder := func(x *callSite) bool {
		o, id, ok := x.object(0)
		if !ok {
			return false
		}
		n := &Object{Class: o.Class, Exact: o.Exact, HasText: true}
		if len(x.args) > 1 {
			s, known := x.str(1)
			if x.args[1].IsNull() {
				return x.throws(dex.ExcNullPointer)
			}
			if !known {
				n.HasText, n.Opaque = false, true
			}
			n.Text = s
		}
		x.c.heap().setObject(id, n)
		return x.returnVoid()
	}
	emulate("Ljava/lang/StringBuilder;-><init>()V", initBuilder)
	emulate("Ljava/lang/StringBuilder;-><init>(Ljava/lang/String;)V", initBuilder)
	known := func(render func(Value) string) func(Value) (string, bool) {
		return func(v Value) (string, bool) {
			if !v.IsPrimitive() {
				return "", false
			}
			return render(v), true
		}
	}
	emulate("Ljava/lang/StringBuilder;->append(I)Ljava/lang/StringBuilder;", appendText(known(renderInt)))
	emulate("Ljava/lang/StringBuilder;->append(J)Ljava/lang/StringBuilder;", appendText(known(renderLong)))
	emulate("Ljava/lang/StringBuilder;->append(Z)Ljava/lang/StringBuilder;", appendText(known(renderBool)))
	emulate("Ljava/lang/StringBuilder;->append(C)Ljava/lang/StringBuilder;", appendText(known(renderChar)))
	emulate("Ljava/lang/StringBuilder;->append(Ljava/lang/String;)Ljava/lang/StringBuilder;", func(x *callSite) bool {
		return appendText(func(v Value) (string, bool) {
			if v.IsNull() {
				return "null", true
			}
			return x.c.StringValue(v)
		})(x)
	})
	emulate("Ljava/lang/StringBuilder;->toString()Ljava/lang/String;", func(x *callSite) bool {
		o, _, ok := x.object(0)
		if !ok {
			return false
		}
		if !o.HasText {
			return x.returns(Unknown(dex.TypeString, ReasonOpaqueCall))
		}
		return x.returns(x.newString(o.Text))
	})
	emulate("Ljava/lang/StringBuilder;->length()I", func(x *callSite) bool {
		o, _, ok := x.object(0)
		if !ok {
			return false
		}
		if !o.HasText {
			return x.returns(Unknown(dex.TypeInt, ReasonOpaqueCall))
		}
		return x.returns(Int(int32(len(units(o.Text)))))
	})

	// java.lang.Integer
	emulate("Ljava/lang/Integer;->valueOf(I)Ljava/lang/Integer;", func(x *callSite) bool {
		o := &Object{Class: typeInteger, Exact: true, Fields: map[string]Value{integerValue: x.args[0]}}
		return x.returns(x.e.b.run.newObject(x.c, o))
	})
	emulate("Ljava/lang/Integer;->intValue()I", func(x *callSite) bool {
		o, _, ok := x.object(0)
		if !ok || o.Class != typeInteger {
			return false
		}
		return x.returns(o.Field(integerValue))
	})
	emulate("Ljava/lang/Integer;->parseInt(Ljava/lang/String;)I", func(x *callSite) bool {
		if x.args[0].IsNull() {
			return x.throws(dex.ExcNumberFormat)
		}
		s, ok := x.str(0)
		if !ok {
			return false
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return x.throws(dex.ExcNumberFormat)
		}
		return x.returns(Int(int32(n)))
	})

	// java.lang.Math
	intOp := func(fn func(a, b int32) int32) emulator {
		return func(x *callSite) bool {
			for _, a := range x.args {
				if !a.IsPrimitive() {
					return x.unknown()
				}
			}
			b := int32(0)
			if len(x.args) > 1 {
				b = x.args[1].Int()
			}
			return x.returns(Int(fn(x.args[0].Int(), b)))
		}
	}
	longOp := func(fn func(a, b int64) int64) emulator {
		return func(x *callSite) bool {
			for _, a := range x.args {
				if !a.IsPrimitive() {
					return x.unknown()
				}
			}
			b := int64(0)
			if len(x.args) > 1 {
				b = x.args[1].Long()
			}
			return x.returns(Long(fn(x.args[0].Long(), b)))
		}
	}
	emulate(typeMath+"->abs(I)I", intOp(func(a, _ int32) int32 {
		if a < 0 {
			return -a
		}
		return a
	}))
	emulate(typeMath+"->abs(J)J", longOp(func(a, _ int64) int64 {
		if a < 0 {
			return -a
		}
		return a
	}))
	emulate(typeMath+"->min(II)I", intOp(func(a, b int32) int32 { return min(a, b) }))
	emulate(typeMath+"->max(II)I", intOp(func(a, b int32) int32 { return max(a, b) }))
	emulate(typeMath+"->min(JJ)J", longOp(func(a, b int64) int64 { return min(a, b) }))
	emulate(typeMath+"->max(JJ)J", longOp(func(a, b int64) int64 { return max(a, b) }))

	// java.lang.Class
	emulate("Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;", func(x *callSite) bool {
		if x.args[0].IsNull() {
			return x.throws(dex.ExcNullPointer)
		}
		name, ok := x.str(0)
		if !ok {
			return false
		}
		desc := dex.DescriptorOf(name)
		if _, found := x.e.catalog().Class(desc); found || dex.IsBuiltinClass(desc) {
			x.e.initClass(x.c, desc)
			return x.returns(x.e.b.run.internClass(x.c, desc))
		}
		x.returns(Unknown(dex.TypeClass, ReasonOpaqueCall))
		return x.throws(dex.ExcClassNotFound)
	})
	emulate("Ljava/lang/Class;->getName()Ljava/lang/String;", func(x *callSite) bool {
		o, _, ok := x.object(0)
		if !ok || o.Class != dex.TypeClass {
			return false
		}
		name, prim := primitiveNames[o.Names]
		if !prim {
			name = dex.JavaName(o.Names)
		}
		return x.returns(x.newString(name))
	})
}
