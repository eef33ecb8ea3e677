package smalivm

const maxRegisterDepth = 8

// RegisterFile is an overlay copy-on-write register file. A child layer
// holds only the slots it wrote; chains deeper than maxRegisterDepth are
// flattened into a dense base.
type RegisterFile struct {
	base   []Value
	parent *RegisterFile
	writes map[int]Value
	depth  int
	size   int
}

func newRegisterFile(size int) *RegisterFile {
	base := make([]Value, size)
	for i := range base {
		base[i] = Unknown("", ReasonUninitialized)
	}
	return &RegisterFile{base: base, size: size}
}

func registerFileOf(values []Value) *RegisterFile {
	return &RegisterFile{base: append([]Value(nil), values...), size: len(values)}
}

// Len returns the number of registers.
func (r *RegisterFile) Len() int { return r.size }

// Get returns the value of register i.
func (r *RegisterFile) Get(i int) Value {
	if i < 0 || i >= r.size {
		panic(invariantf("register v%d out of range (%d registers)", i, r.size))
	}
	for l := r; l != nil; l = l.parent {
		if l.base != nil {
			return l.base[i]
		}
		if v, ok := l.writes[i]; ok {
			return v
		}
	}
	return Unknown("", ReasonUninitialized)
}

// Values returns a dense copy of all registers.
func (r *RegisterFile) Values() []Value {
	out := make([]Value, r.size)
	for i := range out {
		out[i] = r.Get(i)
	}
	return out
}

func (r *RegisterFile) derive() *RegisterFile {
	if r.depth >= maxRegisterDepth {
		r = registerFileOf(r.Values())
	}
	return &RegisterFile{parent: r, writes: map[int]Value{}, depth: r.depth + 1, size: r.size}
}

func (r *RegisterFile) set(i int, v Value) {
	if i < 0 || i >= r.size {
		panic(invariantf("write to register v%d out of range (%d registers)", i, r.size))
	}
	if r.base != nil {
		r.base[i] = v
		return
	}
	r.writes[i] = v
}
