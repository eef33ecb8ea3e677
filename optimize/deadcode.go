package optimize

import (
	dex "github.com/speakeasy-api/simplify"
)

// eliminateDeadCode removes pure instructions whose destination is never
// read afterwards. An instruction that threw in some recorded context is
// kept, since removing it would remove the throw.
func eliminateDeadCode(s *passState) {
	if s.partial {
		return
	}
	live := dex.ComputeLiveness(s.method)
	for addr := range s.method.Instructions {
		in := &s.method.Instructions[addr]
		if !in.Op.WritesRegister() || !in.Op.IsPure() || in.Op == dex.OpNewInstance {
			continue
		}
		if !s.settled(addr) || s.mayThrow(addr) || s.edit.IsHandlerEntry(addr) {
			continue
		}
		if !live.LiveOut(addr, in.A) {
			s.edit.Remove(addr)
		}
	}
}
