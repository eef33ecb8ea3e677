package smalivm

import (
	"strconv"

	dex "github.com/speakeasy-api/simplify"
)

// maxTrackedArray is the largest array whose elements are tracked
// individually.
const maxTrackedArray = 1 << 16

// internString returns the run's unique reference for a string literal,
// materializing it in c's heap if needed.
func (r *run) internString(c *Context, s string) Value {
	id, ok := r.strings[s]
	if !ok {
		id = r.alloc()
		r.strings[s] = id
	}
	if _, ok := c.Heap.Object(id); !ok {
		c.heap().setObject(id, &Object{Class: dex.TypeString, Exact: true, Text: s, HasText: true})
	}
	return Reference(dex.TypeString, id)
}

// internClass returns the run's java.lang.Class object describing t.
func (r *run) internClass(c *Context, t string) Value {
	id, ok := r.classes[t]
	if !ok {
		id = r.alloc()
		r.classes[t] = id
	}
	if _, ok := c.Heap.Object(id); !ok {
		c.heap().setObject(id, &Object{Class: dex.TypeClass, Exact: true, Names: t})
	}
	return Reference(dex.TypeClass, id)
}

// newObject allocates a fresh object in c's heap.
func (r *run) newObject(c *Context, o *Object) Value {
	id := r.alloc()
	c.heap().setObject(id, o)
	return Reference(o.Class, id)
}

// immutable objects are never changed by clobbering.
func immutable(o *Object) bool {
	return o.Class == dex.TypeString || o.Class == dex.TypeClass
}

// clobbered returns o with its contents forgotten.
func clobbered(o *Object) *Object {
	if immutable(o) || o.Opaque && o.Fields == nil && o.Elems == nil && !o.HasText {
		return o
	}
	out := &Object{Class: o.Class, Exact: o.Exact, Names: o.Names, Opaque: true}
	if o.IsArray() && o.Elems != nil {
		out.Elems = make([]Value, len(o.Elems))
		for i := range out.Elems {
			out.Elems[i] = Unknown(dex.ComponentType(o.Class), ReasonClobbered)
		}
	}
	return out
}

// clobberObjects forgets the contents of the given objects.
func (c *Context) clobberObjects(ids []HeapID) {
	for _, id := range ids {
		o, ok := c.Heap.Object(id)
		if !ok {
			continue
		}
		if n := clobbered(o); n != o {
			c.heap().setObject(id, n)
		}
	}
}

// clobberAll forgets the contents of every mutable object.
func (c *Context) clobberAll() { c.clobberObjects(c.Heap.ObjectIDs()) }

// clobberField forgets instance field key in every object that may own it.
func (c *Context) clobberField(key string) {
	for _, id := range c.Heap.ObjectIDs() {
		o, _ := c.Heap.Object(id)
		if immutable(o) || o.IsArray() {
			continue
		}
		c.heap().setObject(id, o.withField(key, Unknown(fieldType(key), ReasonClobbered)))
	}
}

// clobberArrays forgets the elements of every array whose component type
// is compatible with elem.
func (c *Context) clobberArrays(elem string) {
	for _, id := range c.Heap.ObjectIDs() {
		o, _ := c.Heap.Object(id)
		if !o.IsArray() || !sameElementKind(dex.ComponentType(o.Class), elem) {
			continue
		}
		c.heap().setObject(id, clobbered(o))
	}
}

func sameElementKind(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	if dex.IsReference(a) && dex.IsReference(b) {
		return true
	}
	switch {
	case dex.IsWide(a) && dex.IsWide(b):
		return true
	case a == dex.TypeInt || a == dex.TypeFloat:
		return b == dex.TypeInt || b == dex.TypeFloat
	}
	return false
}

// elementType is the element type implied by an aget/aput opcode.
func elementType(op dex.Opcode) string {
	switch op {
	case dex.OpAgetWide, dex.OpAputWide:
		return dex.TypeLong
	case dex.OpAgetObject, dex.OpAputObject:
		return dex.TypeObject
	case dex.OpAgetBoolean, dex.OpAputBoolean:
		return dex.TypeBoolean
	case dex.OpAgetByte, dex.OpAputByte:
		return dex.TypeByte
	case dex.OpAgetChar, dex.OpAputChar:
		return dex.TypeChar
	case dex.OpAgetShort, dex.OpAputShort:
		return dex.TypeShort
	}
	return dex.TypeInt
}

func (e *eval) checkCast() {
	in := e.insn
	v := e.reg(in.A)
	if v.IsNull() {
		e.proceed(e.next())
		return
	}
	typ, exactType := e.runtimeType(e.in, v)
	ok, known := e.catalog().IsAssignable(typ, in.Type)
	switch {
	case known && ok:
		e.proceed(e.next())
		return
	case known && exactType:
		e.raise(dex.ExcClassCast)
		return
	}
	c := e.next()
	if v.IsUnknown() {
		c.setRegister(in.A, Unknown(in.Type, v.Reason))
	}
	e.proceed(c)
	e.raise(dex.ExcClassCast)
}

func (e *eval) instanceOf() {
	in := e.insn
	v := e.reg(in.B)
	if v.IsNull() {
		e.assign(Boolean(false))
		return
	}
	if v.IsKnown() {
		typ, exact := e.runtimeType(e.in, v)
		ok, known := e.catalog().IsAssignable(typ, in.Type)
		switch {
		case known && ok:
			e.assign(Boolean(true))
			return
		case known && exact:
			e.assign(Boolean(false))
			return
		}
	}
	e.assign(Unknown(dex.TypeBoolean, ReasonArithmetic))
}

func (e *eval) arrayLength() {
	v := e.reg(e.insn.B)
	if !e.nullCheck(v) {
		return
	}
	if o, ok := e.in.Object(v); ok && o.Elems != nil {
		e.assign(Int(int32(len(o.Elems))))
		return
	}
	e.assign(Unknown(dex.TypeInt, ReasonUnknownElement))
}

func (e *eval) newInstance() {
	in := e.insn
	c := e.next()
	e.initClass(c, in.Type)
	o := &Object{Class: in.Type, Exact: true}
	if in.Type == dex.TypeString || in.Type == dex.TypeStringBuilder {
		o.HasText = true
	} else if dex.IsBuiltinClass(in.Type) {
		o.Opaque = true
	} else if _, ok := e.catalog().Class(in.Type); !ok {
		o.Opaque = true
	}
	c.setRegister(in.A, e.b.run.newObject(c, o))
	e.proceed(c)
}

func (e *eval) newArray() {
	in := e.insn
	size := e.reg(in.B)
	if size.IsPrimitive() && size.Int() < 0 {
		e.raise(dex.ExcNegativeArraySize)
		return
	}
	c := e.next()
	o := &Object{Class: in.Type, Exact: true}
	if size.IsPrimitive() && size.Int() <= maxTrackedArray {
		o.Elems = make([]Value, size.Int())
		zero := zeroValue(dex.ComponentType(in.Type))
		for i := range o.Elems {
			o.Elems[i] = zero
		}
	} else {
		o.Opaque = true
	}
	c.setRegister(in.A, e.b.run.newObject(c, o))
	e.proceed(c)
	if !size.IsPrimitive() {
		e.raise(dex.ExcNegativeArraySize)
	}
}

func (e *eval) filledNewArray() {
	in := e.insn
	c := e.next()
	elems := make([]Value, len(in.Args))
	for i, r := range in.Args {
		elems[i] = e.reg(r)
	}
	v := e.b.run.newObject(c, &Object{Class: in.Type, Exact: true, Elems: elems})
	c.Result = &v
	e.proceed(c)
}

func (e *eval) fillArrayData() {
	in := e.insn
	arr := e.reg(in.A)
	if !e.nullCheck(arr) {
		return
	}
	o, ok := e.in.Object(arr)
	if !ok {
		c := e.next()
		c.clobberArrays("")
		e.proceed(c)
		e.raise(dex.ExcArrayIndex)
		return
	}
	if o.Elems == nil {
		e.proceed(e.next())
		e.raise(dex.ExcArrayIndex)
		return
	}
	if len(in.Data) > len(o.Elems) {
		e.raise(dex.ExcArrayIndex)
		return
	}
	comp := dex.ComponentType(o.Class)
	n := o.clone()
	for i, d := range in.Data {
		n.Elems[i] = Primitive(comp, d)
	}
	c := e.next()
	id, _ := arr.ObjectRef()
	c.heap().setObject(id, n)
	e.proceed(c)
}

func (e *eval) arrayGet() {
	in := e.insn
	arr, idx := e.reg(in.B), e.reg(in.C)
	if !e.nullCheck(arr) {
		return
	}
	o, ok := e.in.Object(arr)
	if !ok || o.Elems == nil {
		elem := elementType(in.Op)
		if ok {
			elem = dex.ComponentType(o.Class)
		}
		e.assign(Unknown(elem, ReasonUnknownElement))
		e.raise(dex.ExcArrayIndex)
		return
	}
	if idx.IsPrimitive() {
		i := idx.Int()
		if i < 0 || int(i) >= len(o.Elems) {
			e.raise(dex.ExcArrayIndex)
			return
		}
		e.assign(o.Elems[i])
		return
	}
	var v Value
	for i, el := range o.Elems {
		if i == 0 {
			v = el
		} else if !v.Same(el) {
			v = Unknown(dex.ComponentType(o.Class), ReasonUnknownElement)
			break
		}
	}
	if len(o.Elems) == 0 {
		e.raise(dex.ExcArrayIndex)
		return
	}
	e.assign(v)
	e.raise(dex.ExcArrayIndex)
}

func (e *eval) arrayPut() {
	in := e.insn
	v, arr, idx := e.reg(in.A), e.reg(in.B), e.reg(in.C)
	if !e.nullCheck(arr) {
		return
	}
	o, ok := e.in.Object(arr)
	if !ok {
		c := e.next()
		c.clobberArrays(elementType(in.Op))
		e.proceed(c)
		e.raise(dex.ExcArrayIndex)
		return
	}
	if o.Elems == nil {
		e.proceed(e.next())
		e.raise(dex.ExcArrayIndex)
		return
	}
	id, _ := arr.ObjectRef()
	n := o.clone()
	if idx.IsPrimitive() {
		i := idx.Int()
		if i < 0 || int(i) >= len(o.Elems) {
			e.raise(dex.ExcArrayIndex)
			return
		}
		n.Elems[i] = storeAs(dex.ComponentType(o.Class), v)
		c := e.next()
		c.heap().setObject(id, n)
		e.proceed(c)
		return
	}
	if len(o.Elems) == 0 {
		e.raise(dex.ExcArrayIndex)
		return
	}
	for i := range n.Elems {
		n.Elems[i] = Join(n.Elems[i], storeAs(dex.ComponentType(o.Class), v))
	}
	c := e.next()
	c.heap().setObject(id, n)
	e.proceed(c)
	e.raise(dex.ExcArrayIndex)
}

// storeAs narrows a known primitive to the declared storage type.
func storeAs(t string, v Value) Value {
	if !v.IsPrimitive() || !dex.IsPrimitive(t) || v.Type == t {
		return v
	}
	switch t {
	case dex.TypeByte:
		return Primitive(t, int64(int8(v.Int())))
	case dex.TypeShort:
		return Primitive(t, int64(int16(v.Int())))
	case dex.TypeChar, dex.TypeBoolean:
		return Primitive(t, int64(v.Int()))
	case dex.TypeInt, dex.TypeFloat:
		return Value{Kind: KindPrimitive, Type: t, Bits: uint64(uint32(v.Bits))}
	}
	return Value{Kind: KindPrimitive, Type: t, Bits: v.Bits}
}

func (e *eval) instanceGet() {
	in := e.insn
	obj := e.reg(in.B)
	key := fieldKey(in.Ref)
	if !e.nullCheck(obj) {
		return
	}
	if o, ok := e.in.Object(obj); ok {
		e.assign(o.Field(key))
		return
	}
	e.assign(Unknown(fieldType(key), ReasonClobbered))
}

func (e *eval) instancePut() {
	in := e.insn
	v, obj := e.reg(in.A), e.reg(in.B)
	key := fieldKey(in.Ref)
	if !e.nullCheck(obj) {
		return
	}
	c := e.next()
	if o, ok := e.in.Object(obj); ok {
		id, _ := obj.ObjectRef()
		c.heap().setObject(id, o.withField(key, storeAs(fieldType(key), v)))
	} else {
		c.clobberField(key)
	}
	e.proceed(c)
}

func (e *eval) staticGet() {
	in := e.insn
	ref, err := dex.ParseFieldRef(in.Ref)
	if err != nil {
		panic(invariantf("%v", err))
	}
	c := e.next()
	e.initClass(c, ref.Class)
	v, ok := c.Static(in.Ref)
	if !ok {
		v = e.staticDefault(c, ref)
	}
	c.setRegister(in.A, v)
	e.proceed(c)
}

func (e *eval) staticPut() {
	in := e.insn
	ref, err := dex.ParseFieldRef(in.Ref)
	if err != nil {
		panic(invariantf("%v", err))
	}
	c := e.next()
	e.initClass(c, ref.Class)
	c.heap().setStatic(in.Ref, storeAs(ref.Type, e.reg(in.A)))
	e.proceed(c)
}

// staticDefault is the value of a static field the heap has no record
// of. Without class initialization only final literals are trusted.
func (e *eval) staticDefault(c *Context, ref dex.FieldRef) Value {
	cls, ok := e.catalog().Class(ref.Class)
	if !ok {
		return Unknown(ref.Type, ReasonStaticField)
	}
	f, ok := cls.Field(ref.Name)
	if !ok || !f.IsStatic() {
		return Unknown(ref.Type, ReasonStaticField)
	}
	if _, hasInit := cls.Method("<clinit>", "()V"); hasInit || f.Access&dex.AccFinal == 0 {
		return Unknown(ref.Type, ReasonStaticField)
	}
	if !f.HasInitial {
		return zeroValue(ref.Type)
	}
	return e.literal(c, ref.Type, f.Initial)
}

// literal converts a field initializer to a value.
func (e *eval) literal(c *Context, t, text string) Value {
	if t == dex.TypeString {
		if s, err := strconv.Unquote(text); err == nil {
			return e.b.run.internString(c, s)
		}
		if text == "null" {
			return Null(t)
		}
		return Unknown(t, ReasonStaticField)
	}
	if !dex.IsPrimitive(t) {
		if text == "null" {
			return Null(t)
		}
		return Unknown(t, ReasonStaticField)
	}
	bits, err := dex.ParseLiteral(text, dex.IsWide(t))
	if err != nil {
		e.b.run.warnf("bad initializer %q for %s field: %v", text, t, err)
		return Unknown(t, ReasonStaticField)
	}
	return Primitive(t, bits)
}

// initClass runs static initialization of class on first use, when
// enabled. Literal initializers are stored first, then <clinit> runs
// against c's heap. A class whose initializer cannot be interpreted has
// its static fields forgotten.
func (e *eval) initClass(c *Context, class string) {
	if !e.b.run.opts.RunStaticInitializers || c.Heap.Initialized(class) {
		return
	}
	cls, ok := e.catalog().Class(class)
	if !ok {
		return
	}
	h := c.heap()
	h.markInitialized(class)
	for _, f := range cls.Fields {
		if !f.IsStatic() {
			continue
		}
		key := class + "->" + f.Name + ":" + f.Type
		v := zeroValue(f.Type)
		if f.HasInitial {
			v = e.literal(c, f.Type, f.Initial)
		}
		c.heap().setStatic(key, v)
	}
	clinit, ok := cls.Method("<clinit>", "()V")
	if !ok || !clinit.HasBody() {
		return
	}
	heap, ok := e.callClinit(c, clinit)
	if !ok {
		e.b.run.warnf("%s: static initializer of %s could not be interpreted", e.b.method.Signature(), class)
		for _, f := range cls.Fields {
			if f.IsStatic() {
				c.heap().setStatic(class+"->"+f.Name+":"+f.Type, Unknown(f.Type, ReasonStaticField))
			}
		}
		return
	}
	c.Heap = heap
	c.ownHeap = false
}
