package smalivm

import (
	"sort"

	dex "github.com/speakeasy-api/simplify"
)

// ExitAddress is the target of edges that leave the method.
const ExitAddress = -1

// EdgeKind labels a transition between contexts.
type EdgeKind uint8

const (
	EdgeFallthrough EdgeKind = iota
	EdgeBranchTaken
	EdgeBranchNotTaken
	EdgeException
	EdgeReturn
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFallthrough:
		return "fallthrough"
	case EdgeBranchTaken:
		return "taken"
	case EdgeBranchNotTaken:
		return "not-taken"
	case EdgeException:
		return "exception"
	case EdgeReturn:
		return "return"
	default:
		return "edge?"
	}
}

// Successor is one outcome of evaluating an instruction in a context.
// Target is ExitAddress for returns and uncaught throws, in which case
// Context holds the state at the exit point.
type Successor struct {
	Context *Context
	Edge    EdgeKind
	Target  int
}

// Step records the evaluation of one context at a node.
type Step struct {
	In  *Context
	Out []Successor
}

// Node is the set of contexts observed at one address.
type Node struct {
	Address                int
	Contexts               []*Context
	Steps                  []Step
	Visits                 int
	PossiblyNonTerminating bool
}

// TerminalKind tells how a path left the method.
type TerminalKind uint8

const (
	TerminalReturn TerminalKind = iota
	TerminalThrow
)

func (k TerminalKind) String() string {
	if k == TerminalThrow {
		return "throw"
	}
	return "return"
}

// Terminal is a path leaving the method. Value is the returned value (nil
// for return-void) or the uncaught exception.
type Terminal struct {
	From    int
	Kind    TerminalKind
	Value   *Value
	Context *Context
}

// ExecutionGraph is the result of exploring one method.
type ExecutionGraph struct {
	Method    *dex.Method
	Terminals []Terminal
	Warnings  []string
	Budget    BudgetReport

	nodes   []*Node
	partial bool
}

func newExecutionGraph(m *dex.Method) *ExecutionGraph {
	return &ExecutionGraph{Method: m, nodes: make([]*Node, len(m.Instructions))}
}

func (g *ExecutionGraph) node(addr int) *Node {
	n := g.nodes[addr]
	if n == nil {
		n = &Node{Address: addr}
		g.nodes[addr] = n
	}
	return n
}

// Node returns the node at addr if the address was reached.
func (g *ExecutionGraph) Node(addr int) (*Node, bool) {
	if addr < 0 || addr >= len(g.nodes) || g.nodes[addr] == nil || len(g.nodes[addr].Contexts) == 0 {
		return nil, false
	}
	return g.nodes[addr], true
}

// NodesAt returns the contexts recorded at addr.
func (g *ExecutionGraph) NodesAt(addr int) []*Context {
	if n, ok := g.Node(addr); ok {
		return n.Contexts
	}
	return nil
}

// Addresses returns every reached address in increasing order.
func (g *ExecutionGraph) Addresses() []int {
	var out []int
	for addr := range g.nodes {
		if _, ok := g.Node(addr); ok {
			out = append(out, addr)
		}
	}
	return out
}

// WasAddressReached reports whether any context reached addr.
func (g *ExecutionGraph) WasAddressReached(addr int) bool {
	_, ok := g.Node(addr)
	return ok
}

// WasAddressExpanded reports whether some context at addr was evaluated.
func (g *ExecutionGraph) WasAddressExpanded(addr int) bool {
	n, ok := g.Node(addr)
	return ok && len(n.Steps) > 0
}

// IsPartial reports whether exploration was cut short by a budget. Facts
// from a partial graph hold only for the explored paths.
func (g *ExecutionGraph) IsPartial() bool { return g.partial }

// IsPossiblyNonTerminating reports whether addr hit the visit budget.
func (g *ExecutionGraph) IsPossiblyNonTerminating(addr int) bool {
	n, ok := g.Node(addr)
	return ok && n.PossiblyNonTerminating
}

// Successors returns the distinct target addresses of edges of the given
// kind leaving addr. ExitAddress is included for exits.
func (g *ExecutionGraph) Successors(addr int, kind EdgeKind) []int {
	n, ok := g.Node(addr)
	if !ok {
		return nil
	}
	seen := map[int]bool{}
	var out []int
	for _, st := range n.Steps {
		for _, s := range st.Out {
			if s.Edge == kind && !seen[s.Target] {
				seen[s.Target] = true
				out = append(out, s.Target)
			}
		}
	}
	sort.Ints(out)
	return out
}

// EdgeKinds returns the set of edge kinds leaving addr.
func (g *ExecutionGraph) EdgeKinds(addr int) map[EdgeKind]bool {
	n, ok := g.Node(addr)
	if !ok {
		return nil
	}
	out := map[EdgeKind]bool{}
	for _, st := range n.Steps {
		for _, s := range st.Out {
			out[s.Edge] = true
		}
	}
	return out
}

// Predecessors returns the addresses with an edge into addr.
func (g *ExecutionGraph) Predecessors(addr int) []int {
	var out []int
	for from, n := range g.nodes {
		if n == nil {
			continue
		}
	steps:
		for _, st := range n.Steps {
			for _, s := range st.Out {
				if s.Target == addr {
					out = append(out, from)
					break steps
				}
			}
		}
	}
	return out
}

// IsTerminal reports whether some path leaves the method at addr.
func (g *ExecutionGraph) IsTerminal(addr int) bool {
	for _, t := range g.Terminals {
		if t.From == addr {
			return true
		}
	}
	return false
}

// ConsensusAt returns the value of register reg in every context at addr,
// if they all agree.
func (g *ExecutionGraph) ConsensusAt(addr, reg int) (Value, bool) {
	cs := g.NodesAt(addr)
	if len(cs) == 0 {
		return Value{}, false
	}
	v := cs[0].Register(reg)
	for _, c := range cs[1:] {
		if !c.Register(reg).Same(v) {
			return Value{}, false
		}
	}
	return v, true
}

// ConsensusAfter returns the value of register reg in every successor
// context produced at addr, across all edges, if they all agree.
func (g *ExecutionGraph) ConsensusAfter(addr, reg int) (Value, bool) {
	n, ok := g.Node(addr)
	if !ok {
		return Value{}, false
	}
	var v Value
	found := false
	for _, st := range n.Steps {
		for _, s := range st.Out {
			if s.Context == nil {
				continue
			}
			r := s.Context.Register(reg)
			if !found {
				v, found = r, true
			} else if !r.Same(v) {
				return Value{}, false
			}
		}
	}
	return v, found
}

// FallthroughValues returns, for every step at addr, the value of reg in
// its single non-exceptional successor. ok is false if some step does not
// have exactly one such successor.
func (g *ExecutionGraph) FallthroughValues(addr, reg int) (values []Value, ok bool) {
	n, found := g.Node(addr)
	if !found || len(n.Steps) == 0 {
		return nil, false
	}
	for _, st := range n.Steps {
		var next *Context
		count := 0
		for _, s := range st.Out {
			if s.Edge == EdgeException {
				continue
			}
			count++
			next = s.Context
		}
		if count != 1 || next == nil {
			return nil, false
		}
		values = append(values, next.Register(reg))
	}
	return values, true
}

func (g *ExecutionGraph) returns() []Terminal {
	var out []Terminal
	for _, t := range g.Terminals {
		if t.Kind == TerminalReturn {
			out = append(out, t)
		}
	}
	return out
}

// TerminatingRegisterConsensus returns the value of reg at every normal
// return, if they agree.
func (g *ExecutionGraph) TerminatingRegisterConsensus(reg int) (Value, bool) {
	rs := g.returns()
	if len(rs) == 0 {
		return Value{}, false
	}
	v := rs[0].Context.Register(reg)
	for _, t := range rs[1:] {
		if !t.Context.Register(reg).Same(v) {
			return Value{}, false
		}
	}
	return v, true
}

// TerminatingFieldConsensus returns the value of a static field at every
// normal return, if it is recorded and agrees.
func (g *ExecutionGraph) TerminatingFieldConsensus(key string) (Value, bool) {
	rs := g.returns()
	if len(rs) == 0 {
		return Value{}, false
	}
	v, ok := rs[0].Context.Static(key)
	if !ok {
		return Value{}, false
	}
	for _, t := range rs[1:] {
		o, ok := t.Context.Static(key)
		if !ok || !o.Same(v) {
			return Value{}, false
		}
	}
	return v, true
}

// ReturnConsensus returns the value returned on every normal return path,
// if they agree.
func (g *ExecutionGraph) ReturnConsensus() (Value, bool) {
	rs := g.returns()
	if len(rs) == 0 || rs[0].Value == nil {
		return Value{}, false
	}
	v := *rs[0].Value
	for _, t := range rs[1:] {
		if t.Value == nil || !t.Value.Same(v) {
			return Value{}, false
		}
	}
	return v, true
}

// ReturnedString returns the string contents returned on every normal
// return path, if they agree.
func (g *ExecutionGraph) ReturnedString() (string, bool) {
	rs := g.returns()
	if len(rs) == 0 {
		return "", false
	}
	var out string
	for i, t := range rs {
		if t.Value == nil {
			return "", false
		}
		s, ok := t.Context.StringValue(*t.Value)
		if !ok || (i > 0 && s != out) {
			return "", false
		}
		out = s
	}
	return out, true
}
