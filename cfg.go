package dex

import "math/bits"

// Successors returns the addresses control may reach from addr without an
// exception, in instruction order: fallthrough first, then branch targets.
func (m *Method) Successors(addr int) []int {
	in := &m.Instructions[addr]
	var out []int
	if in.Op.CanFallthrough() && addr+1 < len(m.Instructions) {
		out = append(out, addr+1)
	}
	switch {
	case in.Op.IsSwitch():
		for _, t := range in.Targets {
			out = appendUnique(out, t)
		}
	case in.Op.IsBranch():
		out = appendUnique(out, in.Target)
	}
	return out
}

// ExceptionSuccessors returns the handler addresses reachable when the
// instruction at addr throws.
func (m *Method) ExceptionSuccessors(addr int) []int {
	if !m.Instructions[addr].Op.CanThrow() {
		return nil
	}
	var out []int
	for _, h := range m.HandlersAt(addr) {
		out = appendUnique(out, h.Handler)
	}
	return out
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// BitSet is a fixed-size set of small non-negative integers.
type BitSet []uint64

// NewBitSet returns a set able to hold 0..n-1.
func NewBitSet(n int) BitSet { return make(BitSet, (n+63)/64) }

func (b BitSet) Set(i int)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b BitSet) Clear(i int)    { b[i/64] &^= 1 << (uint(i) % 64) }
func (b BitSet) Has(i int) bool { return i/64 < len(b) && b[i/64]&(1<<(uint(i)%64)) != 0 }

// Union adds o to b and reports whether b changed.
func (b BitSet) Union(o BitSet) bool {
	changed := false
	for i := range b {
		n := b[i] | o[i]
		if n != b[i] {
			b[i] = n
			changed = true
		}
	}
	return changed
}

func (b BitSet) Copy() BitSet { return append(BitSet(nil), b...) }

func (b BitSet) Len() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Slice returns the members in increasing order.
func (b BitSet) Slice() []int {
	var out []int
	for i, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, i*64+tz)
			w &^= 1 << uint(tz)
		}
	}
	return out
}

// Liveness holds per-instruction register liveness for a method.
type Liveness struct {
	in  []BitSet
	out []BitSet
}

// ComputeLiveness runs backward dataflow to a fixpoint. A register is live
// after an instruction if some path from there reads it before writing it.
// Exception edges propagate the handler's live-in set without the throwing
// instruction's definitions, since the write never happens.
func ComputeLiveness(m *Method) *Liveness {
	n := len(m.Instructions)
	lv := &Liveness{in: make([]BitSet, n), out: make([]BitSet, n)}
	for i := range lv.in {
		lv.in[i] = NewBitSet(m.Registers)
		lv.out[i] = NewBitSet(m.Registers)
	}
	succs := make([][]int, n)
	excs := make([][]int, n)
	for i := 0; i < n; i++ {
		succs[i] = m.Successors(i)
		excs[i] = m.ExceptionSuccessors(i)
	}
	for changed := true; changed; {
		changed = false
		for i := n - 1; i >= 0; i-- {
			out := NewBitSet(m.Registers)
			for _, s := range succs[i] {
				out.Union(lv.in[s])
			}
			lv.out[i] = out
			in := out.Copy()
			insn := &m.Instructions[i]
			for _, d := range insn.Defs() {
				in.Clear(d)
			}
			for _, e := range excs[i] {
				in.Union(lv.in[e])
			}
			for _, u := range insn.Uses() {
				in.Set(u)
			}
			if lv.in[i].Union(in) {
				changed = true
			}
		}
	}
	return lv
}

// LiveOut reports whether reg may be read after the instruction at addr
// completes normally.
func (l *Liveness) LiveOut(addr, reg int) bool { return l.out[addr].Has(reg) }

// LiveIn reports whether reg may be read at or after addr.
func (l *Liveness) LiveIn(addr, reg int) bool { return l.in[addr].Has(reg) }

// LiveOutSet returns the registers live after addr.
func (l *Liveness) LiveOutSet(addr int) []int { return l.out[addr].Slice() }
