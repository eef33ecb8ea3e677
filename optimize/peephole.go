package optimize

import (
	dex "github.com/speakeasy-api/simplify"
)

const forNameRef = "Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;"

// peephole applies local rewrites. The rules that need graph facts are
// skipped on partial graphs; the rest hold on any path.
func peephole(s *passState) {
	insns := s.method.Instructions
	for addr := range insns {
		if s.edit.Touched(addr) {
			continue
		}
		in := &insns[addr]
		switch {
		case in.Op == dex.OpNop:
			if !s.edit.IsHandlerEntry(addr) {
				s.edit.Remove(addr)
			}
		case (in.Op == dex.OpMove || in.Op == dex.OpMoveWide || in.Op == dex.OpMoveObject) && in.A == in.B:
			if !s.edit.IsHandlerEntry(addr) {
				s.edit.Remove(addr)
			}
		case in.Op == dex.OpGoto && in.Target == addr+1:
			if !s.edit.IsHandlerEntry(addr) {
				s.edit.Remove(addr)
			}
		case in.Op.IsConditional() && in.Op.Format() == dex.FormatABTarget && in.A == in.B:
			selfCompare(s, addr, in)
		case isNegation(in.Op):
			collapseNegation(s, addr)
		case in.Op == dex.OpInvokeStatic && in.Ref == forNameRef:
			forNameToConstClass(s, addr)
		case in.Op == dex.OpCheckCast:
			dropRedundantCast(s, addr, in)
		}
	}
}

// selfCompare decides if-* vA, vA: equal, at-most and at-least comparisons
// always hold.
func selfCompare(s *passState, addr int, in *dex.Instruction) {
	switch in.Op {
	case dex.OpIfEq, dex.OpIfGe, dex.OpIfLe:
		s.edit.Replace(addr, dex.Instruction{Op: dex.OpGoto, Target: in.Target})
	default:
		if !s.edit.IsHandlerEntry(addr) {
			s.edit.Remove(addr)
		}
	}
}

func isNegation(op dex.Opcode) bool {
	switch op {
	case dex.OpNegInt, dex.OpNotInt, dex.OpNegLong, dex.OpNotLong, dex.OpNegFloat, dex.OpNegDouble:
		return true
	}
	return false
}

// collapseNegation rewrites the second of two identical negations
// "neg vA, vB; neg vC, vA" to "move vC, vB". The first stays for dead code
// elimination to judge.
func collapseNegation(s *passState, addr int) {
	insns := s.method.Instructions
	if addr+1 >= len(insns) || s.edit.IsTarget(addr+1) || s.edit.Touched(addr+1) {
		return
	}
	first, second := &insns[addr], &insns[addr+1]
	if second.Op != first.Op || second.B != first.A || first.A == first.B {
		return
	}
	op := dex.OpMove
	if first.Op.IsWide() {
		op = dex.OpMoveWide
	}
	s.edit.Replace(addr+1, dex.Instruction{Op: op, A: second.A, B: first.B})
}

// forNameToConstClass rewrites
//
//	const-string vA, "pkg.Name"
//	invoke-static {vA}, Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;
//	move-result-object vB
//
// into a const-class load when the class is known to exist.
func forNameToConstClass(s *passState, addr int) {
	insns := s.method.Instructions
	if addr == 0 || addr+1 >= len(insns) {
		return
	}
	load, call, move := &insns[addr-1], &insns[addr], &insns[addr+1]
	if load.Op != dex.OpConstString || move.Op != dex.OpMoveResultObject || len(call.Args) != 1 || call.Args[0] != load.A {
		return
	}
	if s.edit.IsTarget(addr) || s.edit.IsTarget(addr+1) || s.edit.Touched(addr+1) || s.edit.Touched(addr-1) {
		return
	}
	desc := dex.DescriptorOf(load.Str)
	if _, ok := s.catalog.Class(desc); !ok && !dex.IsBuiltinClass(desc) {
		return
	}
	if !s.partial && s.graph.WasAddressReached(addr) && s.mayThrow(addr) {
		return
	}
	s.edit.Remove(addr)
	s.edit.Replace(addr+1, dex.Instruction{Op: dex.OpConstClass, A: move.A, Type: desc})
}

// dropRedundantCast removes a check-cast that every recorded context
// passes on a value whose runtime type is known.
func dropRedundantCast(s *passState, addr int, in *dex.Instruction) {
	if !s.settled(addr) || s.mayThrow(addr) || s.edit.IsHandlerEntry(addr) {
		return
	}
	for _, c := range s.graph.NodesAt(addr) {
		v := c.Register(in.A)
		if v.IsNull() {
			continue
		}
		o, ok := c.Object(v)
		if !ok {
			return
		}
		if sub, known := s.catalog.IsAssignable(o.Class, in.Type); !sub || !known {
			return
		}
	}
	s.edit.Remove(addr)
}
