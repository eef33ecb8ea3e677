package optimize

import (
	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/smalivm"
)

// foldLocal folds arithmetic whose operands are set by const loads earlier
// in the same straight-line run. It needs no graph facts, so it is safe on
// partial graphs. Addresses the graph marks possibly non-terminating are
// left alone.
func foldLocal(s *passState) {
	known := map[int]smalivm.Value{}
	read := func(r int) smalivm.Value {
		if v, ok := known[r]; ok {
			return v
		}
		return smalivm.Unknown("", smalivm.ReasonUninitialized)
	}
	for addr := range s.method.Instructions {
		if s.edit.IsTarget(addr) {
			clear(known)
		}
		in := &s.method.Instructions[addr]
		v, ok := smalivm.FoldInstruction(in, read)
		if ok && !in.Op.IsConst() && !s.graph.IsPossiblyNonTerminating(addr) {
			if c, ok := constFor(in, v); ok {
				s.edit.Replace(addr, c)
			}
		}
		for _, d := range in.Defs() {
			delete(known, d)
		}
		if ok && in.Op.WritesRegister() {
			known[in.A] = v
		}
		if in.Op.IsBranch() || !in.Op.CanFallthrough() || in.Op == dex.OpMoveException {
			clear(known)
		}
	}
}
