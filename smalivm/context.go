package smalivm

import "fmt"

// Frame describes the call frame a context belongs to.
type Frame struct {
	Depth         int
	Method        string
	CallerAddress int
}

// Context is the full abstract machine state at one address. Contexts are
// immutable once published to a graph; successors derive new layers.
type Context struct {
	Address   int
	Registers *RegisterFile
	Heap      *Heap
	Frame     Frame

	// Result is the pending invoke or filled-new-array result, consumed by
	// a following move-result.
	Result *Value

	// Exception is the exception delivered to a handler, consumed by
	// move-exception.
	Exception *Value

	ownRegs bool
	ownHeap bool
	fp      []byte
}

// Register returns the value of register i.
func (c *Context) Register(i int) Value { return c.Registers.Get(i) }

// Static returns the value of a static field if the heap records one.
func (c *Context) Static(key string) (Value, bool) { return c.Heap.Static(key) }

// Object resolves a known non-null reference.
func (c *Context) Object(v Value) (*Object, bool) {
	id, ok := v.ObjectRef()
	if !ok {
		return nil, false
	}
	return c.Heap.Object(id)
}

// StringValue returns the contents of v if it is a known string.
func (c *Context) StringValue(v Value) (string, bool) {
	o, ok := c.Object(v)
	if !ok || !o.HasText || o.Class != "Ljava/lang/String;" {
		return "", false
	}
	return o.Text, true
}

// derive starts a successor context at addr sharing all state. The result
// and pending exception are not carried over.
func (c *Context) derive(addr int) *Context {
	return &Context{
		Address:   addr,
		Registers: c.Registers,
		Heap:      c.Heap,
		Frame:     c.Frame,
	}
}

func (c *Context) setRegister(i int, v Value) {
	if !c.ownRegs {
		c.Registers = c.Registers.derive()
		c.ownRegs = true
	}
	c.Registers.set(i, v)
}

// heap returns a writable heap layer owned by c.
func (c *Context) heap() *Heap {
	if !c.ownHeap {
		c.Heap = c.Heap.derive()
		c.ownHeap = true
	}
	return c.Heap
}

// seal marks the context as published; further writes derive new layers.
func (c *Context) seal() *Context {
	c.ownRegs = false
	c.ownHeap = false
	return c
}

func (c *Context) String() string {
	return fmt.Sprintf("ctx@%d%s", c.Address, registerSummary(c, 8))
}

// covers reports whether c is at least as general as o: same shape, and
// every slot where they differ is already unknown in c.
func (c *Context) covers(o *Context) bool {
	if c.Address != o.Address || c.Frame != o.Frame {
		return false
	}
	if !pendingCovers(c.Result, o.Result) || !pendingCovers(c.Exception, o.Exception) {
		return false
	}
	if c.Registers != o.Registers {
		for i := 0; i < c.Registers.Len(); i++ {
			if !c.Register(i).Covers(o.Register(i)) {
				return false
			}
		}
	}
	return heapCovers(c.Heap, o.Heap)
}

func pendingCovers(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Covers(*b)
}

// joinContexts merges contexts at the same address into one whose
// differing slots are unknown.
func joinContexts(cs []*Context) *Context {
	first := cs[0]
	regs := first.Registers.Values()
	heap := first.Heap
	result, exception := first.Result, first.Exception
	for _, c := range cs[1:] {
		for i := range regs {
			regs[i] = Join(regs[i], c.Register(i))
		}
		heap = joinHeaps(heap, c.Heap)
		result = joinPending(result, c.Result)
		exception = joinPending(exception, c.Exception)
	}
	return &Context{
		Address:   first.Address,
		Registers: registerFileOf(regs),
		Heap:      heap,
		Frame:     first.Frame,
		Result:    result,
		Exception: exception,
	}
}

func joinPending(a, b *Value) *Value {
	if a == nil || b == nil {
		return nil
	}
	j := Join(*a, *b)
	return &j
}
