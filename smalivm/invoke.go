package smalivm

import (
	dex "github.com/speakeasy-api/simplify"
)

// pureClasses hold platform methods without side effects on their
// arguments or on static state.
var pureClasses = map[string]bool{
	dex.TypeString:        true,
	dex.TypeClass:         true,
	"Ljava/lang/Math;":    true,
	"Ljava/lang/Integer;": true,
	"Ljava/lang/Long;":    true,
}

// invoke evaluates a call: emulated, interpreted, or opaque.
func (e *eval) invoke() {
	in := e.insn
	ref, err := dex.ParseMethodRef(in.Ref)
	if err != nil {
		e.b.run.warnf("%s: %v", e.b.method.Signature(), err)
		e.unsupported()
		return
	}
	static := in.Op == dex.OpInvokeStatic
	args := e.arguments(ref, static)

	if !static {
		if !e.nullCheck(args[0]) {
			return
		}
	}
	c := e.next()
	if static {
		e.initClass(c, ref.Class)
	}

	if e.b.run.opts.EmulateJDK {
		if fn, ok := emulators[ref.String()]; ok {
			x := &callSite{e: e, c: c, ref: ref, args: args}
			if fn(x) {
				return
			}
		}
	}

	if m, ok := e.resolve(ref, args); ok && m.HasBody() && e.b.run.opts.InterpretCallees {
		if e.interpret(c, m, args) {
			return
		}
	}
	e.opaque(c, ref, args)
}

// arguments reads the argument registers. Wide arguments written as
// register pairs are collapsed to their first register.
func (e *eval) arguments(ref dex.MethodRef, static bool) []Value {
	regs := e.insn.Args
	want := len(ref.Params)
	if !static {
		want++
	}
	out := make([]Value, 0, want)
	if len(regs) == want {
		for _, r := range regs {
			out = append(out, e.reg(r))
		}
		return out
	}
	i := 0
	if !static && i < len(regs) {
		out = append(out, e.reg(regs[i]))
		i++
	}
	for _, p := range ref.Params {
		if i >= len(regs) {
			panic(invariantf("call to %s has too few arguments", ref))
		}
		out = append(out, e.reg(regs[i]))
		i++
		if dex.IsWide(p) {
			i++
		}
	}
	return out
}

// resolve finds the method body a call dispatches to, if it can be
// determined.
func (e *eval) resolve(ref dex.MethodRef, args []Value) (*dex.Method, bool) {
	cat := e.catalog()
	switch e.insn.Op {
	case dex.OpInvokeStatic, dex.OpInvokeDirect:
		if m, ok := cat.Method(ref.String()); ok {
			return m, true
		}
		return cat.ResolveVirtual(ref, ref.Class)
	case dex.OpInvokeSuper:
		return cat.ResolveVirtual(ref, ref.Class)
	}
	if o, ok := e.in.Object(args[0]); ok {
		if !o.Exact && !e.isFinalType(o.Class) {
			recv := ref
			recv.Class = o.Class
			if cat.HasOverride(recv) {
				return nil, false
			}
		}
		return cat.ResolveVirtual(ref, o.Class)
	}
	if cat.HasOverride(ref) {
		return nil, false
	}
	return cat.ResolveVirtual(ref, ref.Class)
}

// interpret explores m as a nested call and turns its exits into
// successors of the call site. It reports false if the call must be
// treated as opaque.
func (e *eval) interpret(c *Context, m *dex.Method, args []Value) bool {
	r := e.b.run
	depth := e.b.depth + 1
	if r.opts.MaxCallDepth > 0 && depth > r.opts.MaxCallDepth {
		r.budget.CallDepthExceeded++
		r.warnf("%s: call to %s exceeds call depth %d; treated as opaque", e.b.method.Signature(), m.Signature(), r.opts.MaxCallDepth)
		return false
	}
	if m.Registers < m.Ins() || len(args) != m.Ins() {
		r.warnf("%s: cannot enter %s with %d arguments", e.b.method.Signature(), m.Signature(), len(args))
		return false
	}
	g := e.call(c, m, args, depth)
	if g == nil || g.partial {
		return false
	}

	var returns []*Context
	for _, t := range g.Terminals {
		if t.Kind == TerminalThrow {
			base := c.derive(e.addr)
			base.Heap = t.Context.Heap
			e.throwValue(base, *t.Value)
			continue
		}
		n := c.derive(e.addr + 1)
		n.Heap = t.Context.Heap
		n.Result = t.Value
		returns = append(returns, n)
	}
	if limit := r.opts.MaxContextsPerNode; limit > 0 && len(returns) > limit {
		returns = []*Context{joinContexts(returns)}
	}
	for _, n := range returns {
		e.proceed(n)
	}
	return true
}

// call builds the graph of m entered with args on c's heap.
func (e *eval) call(c *Context, m *dex.Method, args []Value, depth int) *ExecutionGraph {
	c.seal()
	regs := newRegisterFile(m.Registers)
	params, types := m.ParameterRegisters()
	for i, reg := range params {
		v := args[i]
		if v.IsUnknown() && v.Type == "" {
			v.Type = types[i]
		}
		regs.set(reg, v)
	}
	entry := &Context{
		Address:   0,
		Registers: regs,
		Heap:      c.Heap,
		Frame:     Frame{Depth: depth, Method: m.Signature(), CallerAddress: e.addr},
	}
	nb := newBuilder(e.b.run, m, depth)
	return nb.explore(entry.seal())
}

// callClinit runs a static initializer on c's heap and returns the joined
// heap of its normal exits.
func (e *eval) callClinit(c *Context, m *dex.Method) (*Heap, bool) {
	r := e.b.run
	depth := e.b.depth + 1
	if r.opts.MaxCallDepth > 0 && depth > r.opts.MaxCallDepth {
		r.budget.CallDepthExceeded++
		return nil, false
	}
	g := e.call(c, m, nil, depth)
	if g == nil || g.partial {
		return nil, false
	}
	var heap *Heap
	for _, t := range g.Terminals {
		if t.Kind == TerminalThrow {
			return nil, false
		}
		if heap == nil {
			heap = t.Context.Heap
		} else {
			heap = joinHeaps(heap, t.Context.Heap)
		}
	}
	return heap, heap != nil
}

// opaque models a call whose effect is unknown: the result is unknown,
// objects reachable from the arguments are forgotten and, by option, so
// are static fields. It may throw.
func (e *eval) opaque(c *Context, ref dex.MethodRef, args []Value) {
	opts := e.b.run.opts
	if !pureClasses[ref.Class] {
		var roots []HeapID
		unknownRef := false
		for _, a := range args {
			if id, ok := a.ObjectRef(); ok {
				roots = append(roots, id)
			} else if a.IsUnknown() && (a.Type == "" || dex.IsReference(a.Type)) {
				unknownRef = true
			}
		}
		if opts.OpaqueCallsClobberStatics {
			for _, k := range c.Heap.StaticKeys() {
				if v, ok := c.Static(k); ok {
					if id, ok := v.ObjectRef(); ok {
						roots = append(roots, id)
					}
				}
			}
		}
		if unknownRef {
			c.clobberAll()
		} else {
			c.clobberObjects(c.Heap.reachable(roots))
		}
		if opts.OpaqueCallsClobberStatics {
			c.heap().clobberStatics()
		}
	}
	if ref.Return != dex.TypeVoid {
		v := Unknown(ref.Return, ReasonOpaqueCall)
		c.Result = &v
	}
	e.proceed(c)
	if opts.OpaqueCallsMayThrow {
		base := c.derive(e.addr)
		e.throwValue(base, Unknown(dex.TypeThrowable, ReasonOpaqueCall))
	}
}
