package optimize

import (
	"fmt"
	"sort"

	dex "github.com/speakeasy-api/simplify"
)

// Manipulator collects instruction replacements and removals against one
// method and applies them together, remapping branch targets and handler
// ranges to the surviving instructions.
type Manipulator struct {
	m        *dex.Method
	replaced map[int]dex.Instruction
	removed  map[int]bool
	entries  map[int]bool
	targets  map[int]bool
}

// NewManipulator starts an edit of m. m itself is never modified.
func NewManipulator(m *dex.Method) *Manipulator {
	x := &Manipulator{
		m:        m,
		replaced: map[int]dex.Instruction{},
		removed:  map[int]bool{},
		entries:  map[int]bool{},
		targets:  map[int]bool{},
	}
	for _, h := range m.Handlers {
		x.entries[h.Handler] = true
		x.targets[h.Handler] = true
		x.targets[h.Start] = true
		x.targets[h.End] = true
	}
	for _, in := range m.Instructions {
		switch {
		case in.Op.IsSwitch():
			for _, t := range in.Targets {
				x.targets[t] = true
			}
		case in.Op.IsBranch():
			x.targets[in.Target] = true
		}
	}
	return x
}

// IsHandlerEntry reports whether addr starts an exception handler.
func (x *Manipulator) IsHandlerEntry(addr int) bool { return x.entries[addr] }

// IsTarget reports whether control can enter addr other than by falling
// through from addr-1: a branch or switch target, a handler entry, or a
// try-range boundary.
func (x *Manipulator) IsTarget(addr int) bool { return x.targets[addr] }

// Touched reports whether addr already has a pending edit.
func (x *Manipulator) Touched(addr int) bool {
	_, r := x.replaced[addr]
	return r || x.removed[addr]
}

// Replace schedules in to take the place of the instruction at addr.
func (x *Manipulator) Replace(addr int, in dex.Instruction) {
	delete(x.removed, addr)
	x.replaced[addr] = in
}

// Remove schedules the instruction at addr for removal. Branches into it
// are redirected to the next surviving instruction.
func (x *Manipulator) Remove(addr int) {
	delete(x.replaced, addr)
	x.removed[addr] = true
}

// Changes returns the number of scheduled edits.
func (x *Manipulator) Changes() int { return len(x.replaced) + len(x.removed) }

// Apply builds the rewritten method. Handlers whose entry was removed are
// dropped, as are try ranges left empty.
func (x *Manipulator) Apply() (*dex.Method, error) {
	n := len(x.m.Instructions)
	// remap[i] is the new address of the first surviving instruction at or
	// after i; remap[n] is the new length.
	remap := make([]int, n+1)
	kept := 0
	for i := 0; i < n; i++ {
		remap[i] = kept
		if !x.removed[i] {
			kept++
		}
	}
	remap[n] = kept
	if kept == 0 {
		return nil, fmt.Errorf("%s: rewrite removes every instruction", x.m.Signature())
	}

	out := x.m.Clone()
	out.Instructions = make([]dex.Instruction, 0, kept)
	for i := 0; i < n; i++ {
		if x.removed[i] {
			continue
		}
		in, ok := x.replaced[i]
		if !ok {
			in = x.m.Instructions[i]
		}
		in = in.Clone()
		switch {
		case in.Op.IsSwitch():
			for j, t := range in.Targets {
				in.Targets[j] = remap[t]
			}
		case in.Op.IsBranch():
			in.Target = remap[in.Target]
		}
		out.Instructions = append(out.Instructions, in)
	}

	out.Handlers = nil
	for _, h := range x.m.Handlers {
		if x.removed[h.Handler] {
			continue
		}
		h.Start, h.End, h.Handler = remap[h.Start], remap[h.End], remap[h.Handler]
		if h.Start >= h.End {
			continue
		}
		out.Handlers = append(out.Handlers, h)
	}

	if last := out.Instructions[kept-1]; last.Op.CanFallthrough() {
		return nil, fmt.Errorf("%s: rewrite lets %s fall off the end", x.m.Signature(), last.Op)
	}
	if err := dex.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Edits lists the addresses with pending edits in order, for logging.
func (x *Manipulator) Edits() []int {
	out := make([]int, 0, x.Changes())
	for a := range x.replaced {
		out = append(out, a)
	}
	for a := range x.removed {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}
