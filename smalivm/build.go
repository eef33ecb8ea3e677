package smalivm

import (
	"context"
	"fmt"
	"time"

	dex "github.com/speakeasy-api/simplify"
)

// run is the state shared by a root exploration and every nested call it
// makes: heap-id allocation, interning, budgets and warnings.
type run struct {
	vm      *VirtualMachine
	opts    Options
	log     Logger
	goctx   context.Context
	start   time.Time
	nextID  HeapID
	strings map[string]HeapID
	classes map[string]HeapID
	raised  map[string]HeapID

	evals    int
	stopped  bool
	budget   BudgetReport
	warnings []string
	warned   map[string]bool
}

func newRun(ctx context.Context, vm *VirtualMachine) *run {
	return &run{
		vm:      vm,
		opts:    vm.opts,
		log:     vm.log,
		goctx:   ctx,
		start:   time.Now(),
		strings: map[string]HeapID{},
		classes: map[string]HeapID{},
		raised:  map[string]HeapID{},
		warned:  map[string]bool{},
	}
}

func (r *run) alloc() HeapID {
	r.nextID++
	return r.nextID
}

func (r *run) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.warned[msg] {
		return
	}
	r.warned[msg] = true
	r.log.Warnf("%s", msg)
	if r.opts.EnableWarnings {
		r.warnings = append(r.warnings, msg)
	}
}

// tick accounts for one instruction evaluation and reports whether the run
// may continue.
func (r *run) tick() bool {
	if r.stopped {
		return false
	}
	r.evals++
	if r.opts.MaxInstructionEvaluations > 0 && r.evals > r.opts.MaxInstructionEvaluations {
		r.budget.InstructionsExceeded = true
		r.stopped = true
		r.warnf("instruction budget of %d evaluations exceeded", r.opts.MaxInstructionEvaluations)
		return false
	}
	if r.evals%64 == 0 {
		if err := r.goctx.Err(); err != nil {
			r.budget.TimeExceeded = true
			r.stopped = true
			r.warnf("execution cancelled: %v", err)
			return false
		}
		if r.opts.MaxExecutionTime > 0 && time.Since(r.start) > r.opts.MaxExecutionTime {
			r.budget.TimeExceeded = true
			r.stopped = true
			r.warnf("execution time budget of %s exceeded", r.opts.MaxExecutionTime)
			return false
		}
	}
	return true
}

// builder explores one method invocation breadth-first.
type builder struct {
	run    *run
	method *dex.Method
	graph  *ExecutionGraph
	queue  []*Context
	depth  int
	log    Logger

	// pc is the address being evaluated, for fault reports.
	pc int
}

func newBuilder(r *run, m *dex.Method, depth int) *builder {
	return &builder{
		run:    r,
		method: m,
		graph:  newExecutionGraph(m),
		depth:  depth,
		log:    r.log.With(map[string]any{FieldMethod: m.Signature(), FieldDepth: depth}),
	}
}

// explore builds the graph from entry until the worklist drains or a
// budget stops it.
func (b *builder) explore(entry *Context) *ExecutionGraph {
	b.log.Debugf("explore start registers=%d instructions=%d", b.method.Registers, len(b.method.Instructions))
	b.admit(entry)
	for len(b.queue) > 0 {
		c := b.queue[0]
		b.queue = b.queue[1:]
		n := b.graph.nodes[c.Address]
		if !n.holds(c) {
			continue
		}
		if b.run.stopped {
			b.graph.partial = true
			break
		}
		b.expand(n, c)
	}
	if !b.run.stopped {
		b.markDivergent()
	}
	if b.depth > b.run.budget.MaxCallDepthReached {
		b.run.budget.MaxCallDepthReached = b.depth
	}
	b.log.Debugf("explore done addresses=%d terminals=%d partial=%v", len(b.graph.Addresses()), len(b.graph.Terminals), b.graph.partial)
	return b.graph
}

func (n *Node) holds(c *Context) bool {
	for _, x := range n.Contexts {
		if x == c {
			return true
		}
	}
	return false
}

// capVisits marks n possibly non-terminating once it used up its visits.
func (b *builder) capVisits(n *Node) {
	if !n.PossiblyNonTerminating {
		n.PossiblyNonTerminating = true
		b.graph.Budget.VisitCapped = append(b.graph.Budget.VisitCapped, n.Address)
		b.run.warnf("%s: address %d exceeded %d visits; marked possibly non-terminating", b.method.Signature(), n.Address, b.run.opts.MaxAddressVisits)
	}
	b.graph.partial = true
}

// markDivergent marks the reached nodes from which no recorded path leads
// out of the method. Their contexts converged, but execution entering them
// never leaves. Nodes cut off by a budget count as possible exits.
func (b *builder) markDivergent() {
	nodes := b.graph.nodes
	preds := make([][]int, len(nodes))
	exits := make([]bool, len(nodes))
	var work []int
	for _, n := range nodes {
		if n == nil || len(n.Contexts) == 0 {
			continue
		}
		if n.PossiblyNonTerminating || len(n.Steps) == 0 {
			exits[n.Address] = true
		}
		for _, st := range n.Steps {
			if len(st.Out) == 0 {
				exits[n.Address] = true
			}
			for _, s := range st.Out {
				if s.Target == ExitAddress {
					exits[n.Address] = true
				} else {
					preds[s.Target] = append(preds[s.Target], n.Address)
				}
			}
		}
		if exits[n.Address] {
			work = append(work, n.Address)
		}
	}
	for len(work) > 0 {
		addr := work[len(work)-1]
		work = work[:len(work)-1]
		for _, p := range preds[addr] {
			if !exits[p] {
				exits[p] = true
				work = append(work, p)
			}
		}
	}
	var stuck []int
	for _, n := range nodes {
		if n == nil || len(n.Contexts) == 0 || exits[n.Address] {
			continue
		}
		n.PossiblyNonTerminating = true
		b.graph.Budget.VisitCapped = append(b.graph.Budget.VisitCapped, n.Address)
		stuck = append(stuck, n.Address)
	}
	if len(stuck) > 0 {
		b.graph.partial = true
		b.run.warnf("%s: addresses %v never reach an exit; marked possibly non-terminating", b.method.Signature(), stuck)
	}
}

func (b *builder) expand(n *Node, c *Context) {
	if n.Visits >= b.run.opts.MaxAddressVisits {
		b.capVisits(n)
		return
	}
	if !b.run.tick() {
		b.graph.partial = true
		return
	}
	n.Visits++
	b.pc = c.Address
	insn := &b.method.Instructions[c.Address]
	b.log.Debugf("eval pc=%d op=%s ctx=%s", c.Address, insn.Op, registerSummary(c, 4))

	out := b.evaluate(c, insn)
	n.Steps = append(n.Steps, Step{In: c, Out: out})
	for _, s := range out {
		s.Context.seal()
		if s.Target == ExitAddress {
			b.terminal(c.Address, s)
			continue
		}
		b.admit(s.Context)
	}
}

func (b *builder) terminal(from int, s Successor) {
	t := Terminal{From: from, Context: s.Context}
	if s.Edge == EdgeReturn {
		t.Kind = TerminalReturn
		t.Value = s.Context.Result
	} else {
		t.Kind = TerminalThrow
		t.Value = s.Context.Exception
	}
	b.graph.Terminals = append(b.graph.Terminals, t)
}

// finish copies run-level diagnostics onto a root graph.
func (b *builder) finish() *ExecutionGraph {
	g := b.graph
	g.Budget.Evaluations = b.run.evals
	g.Budget.MaxCallDepthReached = b.run.budget.MaxCallDepthReached
	g.Budget.CallDepthExceeded = b.run.budget.CallDepthExceeded
	g.Budget.InstructionsExceeded = b.run.budget.InstructionsExceeded
	g.Budget.TimeExceeded = b.run.budget.TimeExceeded
	if g.Budget.Exceeded() {
		g.partial = true
	}
	g.Warnings = append(g.Warnings, b.run.warnings...)
	return g
}
