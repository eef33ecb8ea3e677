package optimize

import (
	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/smalivm"
)

// propagateConstants replaces pure instructions whose result is the same
// primitive on every path with a const load. Partial graphs only get the
// straight-line folding of foldLocal.
func propagateConstants(s *passState) {
	if s.partial {
		foldLocal(s)
		return
	}
	for _, addr := range s.graph.Addresses() {
		in := &s.method.Instructions[addr]
		if !foldable(in) || !s.settled(addr) || s.mayThrow(addr) {
			continue
		}
		values, ok := s.graph.FallthroughValues(addr, in.A)
		if !ok {
			continue
		}
		v := values[0]
		for _, o := range values[1:] {
			if !o.Same(v) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if c, ok := constFor(in, v); ok {
			s.edit.Replace(addr, c)
		}
	}
}

// foldable reports whether in only computes its destination register and
// is not already a constant load.
func foldable(in *dex.Instruction) bool {
	if !in.Op.WritesRegister() || !in.Op.IsPure() || in.Op.IsConst() {
		return false
	}
	switch in.Op {
	case dex.OpNewInstance, dex.OpNewArray:
		return false
	}
	return true
}

// constFor builds the const load of v into in's destination. The
// instruction's width must match the value's.
func constFor(in *dex.Instruction, v smalivm.Value) (dex.Instruction, bool) {
	if !v.IsPrimitive() || in.Op.IsWide() != dex.IsWide(v.Type) {
		return dex.Instruction{}, false
	}
	if in.Op.IsWide() {
		return dex.Instruction{Op: dex.OpConstWide, A: in.A, Literal: int64(v.Bits)}, true
	}
	return dex.Instruction{Op: dex.OpConst, A: in.A, Literal: int64(v.Int())}, true
}
