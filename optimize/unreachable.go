package optimize

import (
	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/smalivm"
)

// pruneUnreachable rewrites branches with a single observed outcome and
// removes instructions no path reaches. It does nothing on partial graphs.
func pruneUnreachable(s *passState) {
	if s.partial {
		return
	}
	g := s.graph
	for addr := range s.method.Instructions {
		if !g.WasAddressReached(addr) {
			s.edit.Remove(addr)
			continue
		}
		if !s.settled(addr) {
			continue
		}
		in := &s.method.Instructions[addr]
		taken := g.Successors(addr, smalivm.EdgeBranchTaken)
		notTaken := g.Successors(addr, smalivm.EdgeBranchNotTaken)
		switch {
		case in.Op.IsConditional():
			switch {
			case len(taken) == 0 && len(notTaken) > 0:
				s.edit.Remove(addr)
			case len(notTaken) == 0 && len(taken) > 0:
				s.edit.Replace(addr, dex.Instruction{Op: dex.OpGoto, Target: in.Target})
			}
		case in.Op.IsSwitch():
			pruneSwitch(s, addr, in, taken, len(notTaken) > 0)
		}
	}
}

// pruneSwitch drops the cases of a switch that were never taken, turning
// it into a goto or removing it when one outcome is left.
func pruneSwitch(s *passState, addr int, in *dex.Instruction, taken []int, fallsThrough bool) {
	switch {
	case len(taken) == 0 && fallsThrough:
		s.edit.Remove(addr)
		return
	case len(taken) == 1 && !fallsThrough:
		s.edit.Replace(addr, dex.Instruction{Op: dex.OpGoto, Target: taken[0]})
		return
	}
	live := map[int]bool{}
	for _, t := range taken {
		live[t] = true
	}
	out := in.Clone()
	out.Keys, out.Targets = nil, nil
	for i, t := range in.Targets {
		if live[t] {
			out.Keys = append(out.Keys, in.Keys[i])
			out.Targets = append(out.Targets, t)
		}
	}
	if len(out.Targets) < len(in.Targets) {
		s.edit.Replace(addr, out)
	}
}
