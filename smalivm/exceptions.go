package smalivm

import (
	"fmt"

	dex "github.com/speakeasy-api/simplify"
)

// raise throws a fresh instance of a platform exception from the current
// address. Instances are interned per method, address and type so that
// repeated evaluations produce equal contexts.
func (e *eval) raise(typ string) {
	c := e.in.derive(e.addr)
	key := fmt.Sprintf("%s@%d:%s", e.b.method.Signature(), e.addr, typ)
	r := e.b.run
	id, ok := r.raised[key]
	if !ok {
		id = r.alloc()
		r.raised[key] = id
	}
	if _, ok := c.Heap.Object(id); !ok {
		c.heap().setObject(id, &Object{Class: typ, Exact: true, Opaque: true})
	}
	e.throwValue(c, Reference(typ, id))
}

// finalClasses are platform classes that cannot be subclassed.
var finalClasses = map[string]bool{
	dex.TypeString:          true,
	dex.TypeClass:           true,
	dex.TypeStringBuilder:   true,
	"Ljava/lang/Integer;":   true,
	"Ljava/lang/Long;":      true,
	"Ljava/lang/Character;": true,
	"Ljava/lang/Boolean;":   true,
}

// isFinalType reports whether no value of type t can have a runtime class
// other than t.
func (e *eval) isFinalType(t string) bool {
	for dex.IsArray(t) {
		t = dex.ComponentType(t)
	}
	if dex.IsPrimitive(t) || finalClasses[t] {
		return true
	}
	cls, ok := e.catalog().Class(t)
	return ok && cls.Access&dex.AccFinal != 0
}

// runtimeType returns the dynamic type of a reference and whether it is
// exact. An object that was not allocated here is only known to be an
// instance of some subtype of its class. Unknown references may be null
// and are never exact.
func (e *eval) runtimeType(c *Context, v Value) (string, bool) {
	if o, ok := c.Object(v); ok {
		return o.Class, o.Exact || e.isFinalType(o.Class)
	}
	if v.Type == "" {
		return dex.TypeThrowable, false
	}
	return v.Type, false
}

// throwValue delivers exc, thrown in state base, to every handler that may
// catch it, in declaration order, and to method exit if it may escape.
func (e *eval) throwValue(base *Context, exc Value) {
	typ, exact := e.runtimeType(base, exc)
	cat := e.catalog()
	for _, h := range e.b.method.HandlersAt(e.addr) {
		if h.Type == "" {
			e.deliver(base, exc, h.Handler)
			return
		}
		ok, known := cat.IsAssignable(typ, h.Type)
		switch {
		case known && ok:
			// Every runtime type assignable to typ is caught here.
			e.deliver(base, exc, h.Handler)
			return
		case known && exact:
			continue
		case known:
			if sub, k := cat.IsAssignable(h.Type, typ); k && !sub {
				continue
			}
			e.deliver(base, exc, h.Handler)
		default:
			e.deliver(base, exc, h.Handler)
		}
	}
	c := base.derive(ExitAddress)
	c.Exception = &exc
	e.out = append(e.out, Successor{Context: c, Edge: EdgeException, Target: ExitAddress})
}

func (e *eval) deliver(base *Context, exc Value, handler int) {
	c := base.derive(handler)
	c.Exception = &exc
	e.emit(c, EdgeException)
}

// nullCheck raises NullPointerException when v may be null and reports
// whether execution can continue normally.
func (e *eval) nullCheck(v Value) bool {
	switch {
	case v.IsNull():
		e.raise(dex.ExcNullPointer)
		return false
	case v.IsUnknown():
		e.raise(dex.ExcNullPointer)
	}
	return true
}
