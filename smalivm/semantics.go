package smalivm

import (
	dex "github.com/speakeasy-api/simplify"
)

// eval is the evaluation of one instruction in one context.
type eval struct {
	b    *builder
	in   *Context
	insn *dex.Instruction
	addr int
	out  []Successor
}

// evaluate returns every successor of insn executed in c.
func (b *builder) evaluate(c *Context, insn *dex.Instruction) []Successor {
	e := &eval{b: b, in: c, insn: insn, addr: c.Address}
	e.dispatch()
	return e.out
}

func (e *eval) reg(i int) Value { return e.in.Register(i) }

func (e *eval) catalog() ClassCatalog { return e.b.run.vm.catalog }

// next derives the fallthrough context.
func (e *eval) next() *Context {
	if e.addr+1 >= len(e.b.method.Instructions) {
		panic(invariantf("%s falls off the end of the method", e.insn.Op))
	}
	return e.in.derive(e.addr + 1)
}

func (e *eval) emit(c *Context, edge EdgeKind) {
	e.out = append(e.out, Successor{Context: c, Edge: edge, Target: c.Address})
}

func (e *eval) proceed(c *Context) { e.emit(c, EdgeFallthrough) }

// assign writes vA and falls through.
func (e *eval) assign(v Value) {
	c := e.next()
	c.setRegister(e.insn.A, v)
	e.proceed(c)
}

func (e *eval) jump(target int, edge EdgeKind) {
	if target < 0 || target >= len(e.b.method.Instructions) {
		panic(invariantf("branch target %d out of range", target))
	}
	e.emit(e.in.derive(target), edge)
}

func (e *eval) ret(v *Value) {
	c := e.in.derive(ExitAddress)
	c.Result = v
	e.out = append(e.out, Successor{Context: c, Edge: EdgeReturn, Target: ExitAddress})
}

func (e *eval) unsupported() {
	e.b.run.warnf("%s: unsupported instruction %s at %d", e.b.method.Signature(), e.insn.Op, e.addr)
	switch {
	case e.insn.Op.IsInvoke():
		c := e.next()
		v := Unknown("", ReasonUnsupported)
		c.Result = &v
		e.proceed(c)
		if e.b.run.opts.OpaqueCallsMayThrow {
			e.throwValue(e.in.derive(e.addr), Unknown(dex.TypeThrowable, ReasonUnsupported))
		}
	case e.insn.Op.WritesRegister():
		e.assign(Unknown("", ReasonUnsupported))
	default:
		e.proceed(e.next())
	}
}

func (e *eval) dispatch() {
	in := e.insn
	op := in.Op
	if !op.IsSupported() {
		e.unsupported()
		return
	}
	switch {
	case op == dex.OpNop:
		e.proceed(e.next())
	case op == dex.OpMove, op == dex.OpMoveWide, op == dex.OpMoveObject:
		e.assign(e.reg(in.B))
	case op.IsMoveResult():
		if e.in.Result != nil {
			e.assign(*e.in.Result)
			return
		}
		e.assign(Unknown(moveResultType(op), ReasonUninitialized))
	case op == dex.OpMoveException:
		if e.in.Exception != nil {
			e.assign(*e.in.Exception)
			return
		}
		e.assign(Unknown(dex.TypeThrowable, ReasonCaught))
	case op == dex.OpReturnVoid:
		e.ret(nil)
	case op.IsReturn():
		v := e.reg(in.A)
		e.ret(&v)
	case op == dex.OpConst:
		e.assign(Int(int32(in.Literal)))
	case op == dex.OpConstWide:
		e.assign(Long(in.Literal))
	case op == dex.OpConstString:
		c := e.next()
		c.setRegister(in.A, e.b.run.internString(c, in.Str))
		e.proceed(c)
	case op == dex.OpConstClass:
		c := e.next()
		c.setRegister(in.A, e.b.run.internClass(c, in.Type))
		e.proceed(c)
	case op == dex.OpMonitorEnter, op == dex.OpMonitorExit:
		if e.nullCheck(e.reg(in.A)) {
			e.proceed(e.next())
		}
	case op == dex.OpCheckCast:
		e.checkCast()
	case op == dex.OpInstanceOf:
		e.instanceOf()
	case op == dex.OpArrayLength:
		e.arrayLength()
	case op == dex.OpNewInstance:
		e.newInstance()
	case op == dex.OpNewArray:
		e.newArray()
	case op == dex.OpFilledNewArray:
		e.filledNewArray()
	case op == dex.OpFillArrayData:
		e.fillArrayData()
	case op == dex.OpThrow:
		v := e.reg(in.A)
		if v.IsNull() {
			e.raise(dex.ExcNullPointer)
			return
		}
		if v.IsUnknown() {
			e.raise(dex.ExcNullPointer)
		}
		e.throwValue(e.in.derive(e.addr), v)
	case op == dex.OpGoto:
		e.jump(in.Target, EdgeBranchTaken)
	case op.IsSwitch():
		e.switchOn()
	case op.IsConditional():
		e.branch()
	case op >= dex.OpAget && op <= dex.OpAgetShort:
		e.arrayGet()
	case op >= dex.OpAput && op <= dex.OpAputShort:
		e.arrayPut()
	case op >= dex.OpIget && op <= dex.OpIgetShort:
		e.instanceGet()
	case op >= dex.OpIput && op <= dex.OpIputShort:
		e.instancePut()
	case op >= dex.OpSget && op <= dex.OpSgetShort:
		e.staticGet()
	case op >= dex.OpSput && op <= dex.OpSputShort:
		e.staticPut()
	case op.IsInvoke():
		e.invoke()
	case isArith(op):
		e.arith()
	default:
		e.unsupported()
	}
}

func moveResultType(op dex.Opcode) string {
	switch op {
	case dex.OpMoveResultWide:
		return dex.TypeLong
	case dex.OpMoveResultObject:
		return dex.TypeObject
	}
	return dex.TypeInt
}

func (e *eval) arith() {
	r := evalArith(e.insn, e.reg)
	if r.divZero {
		e.raise(dex.ExcArithmetic)
		return
	}
	e.assign(r.value)
	if r.mayDiv0 {
		e.raise(dex.ExcArithmetic)
	}
}

// branch evaluates an if-test. A register compared with itself is decided
// even when its value is unknown.
func (e *eval) branch() {
	in := e.insn
	a := e.reg(in.A)
	var taken, decided bool
	if in.Op <= dex.OpIfLe {
		b := e.reg(in.B)
		switch {
		case in.A == in.B:
			taken, decided = in.Op == dex.OpIfEq || in.Op == dex.OpIfGe || in.Op == dex.OpIfLe, true
		case a.IsKnown() && b.IsKnown():
			taken, decided = compareBranch(in.Op, a, b)
		}
	} else if a.IsKnown() {
		taken, decided = compareBranch(in.Op, a, Int(0))
	}
	if decided {
		if taken {
			e.jump(in.Target, EdgeBranchTaken)
		} else {
			e.emit(e.next(), EdgeBranchNotTaken)
		}
		return
	}
	e.jump(in.Target, EdgeBranchTaken)
	e.emit(e.next(), EdgeBranchNotTaken)
}

// compareBranch decides an if-test over two known operands. References
// compare by identity and only support equality tests.
func compareBranch(op dex.Opcode, a, b Value) (taken, decided bool) {
	if a.Kind == KindReference || b.Kind == KindReference {
		if a.seed != nil || b.seed != nil {
			return false, false
		}
		eq := a.IsNull() && b.IsNull() || a.Kind == b.Kind && a.Ref == b.Ref && a.Ref != 0
		switch op {
		case dex.OpIfEq, dex.OpIfEqz:
			return eq, true
		case dex.OpIfNe, dex.OpIfNez:
			return !eq, true
		}
		return false, false
	}
	x, y := a.Int(), b.Int()
	switch op {
	case dex.OpIfEq, dex.OpIfEqz:
		return x == y, true
	case dex.OpIfNe, dex.OpIfNez:
		return x != y, true
	case dex.OpIfLt, dex.OpIfLtz:
		return x < y, true
	case dex.OpIfGe, dex.OpIfGez:
		return x >= y, true
	case dex.OpIfGt, dex.OpIfGtz:
		return x > y, true
	case dex.OpIfLe, dex.OpIfLez:
		return x <= y, true
	}
	return false, false
}

// switchOn follows the matching case for a known key, otherwise every case
// and the default.
func (e *eval) switchOn() {
	in := e.insn
	key := e.reg(in.A)
	if key.IsPrimitive() {
		for i, k := range in.Keys {
			if k == key.Int() {
				e.jump(in.Targets[i], EdgeBranchTaken)
				return
			}
		}
		e.emit(e.next(), EdgeBranchNotTaken)
		return
	}
	seen := map[int]bool{}
	for _, t := range in.Targets {
		if seen[t] {
			continue
		}
		seen[t] = true
		e.jump(t, EdgeBranchTaken)
	}
	e.emit(e.next(), EdgeBranchNotTaken)
}
