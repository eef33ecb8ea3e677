package smalivm

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dex "github.com/speakeasy-api/simplify"
)

var tracer = otel.Tracer("github.com/speakeasy-api/simplify/smalivm")

// VirtualMachine explores methods of a catalog. It holds no per-run state
// and may be used from several goroutines.
type VirtualMachine struct {
	catalog ClassCatalog
	opts    Options
	log     Logger
}

// NewVirtualMachine returns a machine over catalog. A nil catalog is
// treated as empty.
//
// Example:
//
//	cat, _ := dex.ParseCatalog(src)
//	vm := smalivm.NewVirtualMachine(cat)
//	g, err := vm.Execute(ctx, "LFoo;->bar(I)I", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, ok := g.ReturnConsensus()
func NewVirtualMachine(catalog ClassCatalog, opts ...Options) *VirtualMachine {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if catalog == nil {
		catalog = dex.NewCatalog()
	}
	return &VirtualMachine{catalog: catalog, opts: opt, log: opt.logger()}
}

// Options returns the machine's configuration.
func (vm *VirtualMachine) Options() Options { return vm.opts }

// Execute builds the execution graph of the method named by sig. A nil
// state leaves every parameter unknown.
func (vm *VirtualMachine) Execute(ctx context.Context, sig string, state *InitialState) (*ExecutionGraph, error) {
	m, ok := vm.catalog.Method(sig)
	if !ok {
		ref, err := dex.ParseMethodRef(sig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMethodNotFound, err)
		}
		if _, ok := vm.catalog.Class(ref.Class); !ok {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, ref.Class)
		}
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, sig)
	}
	return vm.ExecuteMethod(ctx, m, state)
}

// ExecuteMethod builds the execution graph of m, which need not be in the
// catalog. Exhausted budgets produce a partial graph, not an error.
func (vm *VirtualMachine) ExecuteMethod(ctx context.Context, m *dex.Method, state *InitialState) (g *ExecutionGraph, err error) {
	if !m.HasBody() {
		return nil, fmt.Errorf("%w: %s has no body", ErrMethodNotFound, m.Signature())
	}
	if err := dex.Validate(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	ctx, span := tracer.Start(ctx, "smalivm.Execute", trace.WithAttributes(
		attribute.String("method", m.Signature()),
		attribute.Int("instructions", len(m.Instructions)),
	))
	defer span.End()

	r := newRun(ctx, vm)
	b := newBuilder(r, m, 0)
	defer func() {
		if p := recover(); p != nil {
			g, err = nil, recoverInvariant(p, m.Signature(), b.pc)
			vm.log.Errorf("%v", err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	entry, err := vm.entry(r, m, state)
	if err != nil {
		return nil, err
	}
	b.explore(entry)
	g = b.finish()
	span.SetAttributes(
		attribute.Int("evaluations", g.Budget.Evaluations),
		attribute.Bool("partial", g.IsPartial()),
		attribute.Int("terminals", len(g.Terminals)),
	)
	if g.IsPartial() {
		vm.log.With(map[string]any{FieldMethod: m.Signature(), "budget": g.Budget}).Infof("partial graph")
	}
	return g, nil
}

// entry builds the entry context of m from state.
func (vm *VirtualMachine) entry(r *run, m *dex.Method, state *InitialState) (*Context, error) {
	c := &Context{
		Registers: newRegisterFile(m.Registers),
		Heap:      NewHeap(),
		Frame:     Frame{Method: m.Signature(), CallerAddress: ExitAddress},
	}
	params, types := m.ParameterRegisters()
	declared := map[int]string{}
	for i, reg := range params {
		declared[reg] = types[i]
		c.setRegister(reg, Unknown(types[i], ReasonParameter))
	}
	if !m.IsStatic() {
		c.setRegister(params[0], materialize(r, c, ObjectSeed(m.Class)))
	}
	if state == nil {
		return c.seal(), nil
	}

	regs := make([]int, 0, len(state.Registers))
	for reg := range state.Registers {
		regs = append(regs, reg)
	}
	sort.Ints(regs)
	for _, reg := range regs {
		v := state.Registers[reg]
		if reg < 0 || reg >= m.Registers {
			return nil, fmt.Errorf("%w: register v%d out of range (%d registers)", ErrUnresolvedEntryState, reg, m.Registers)
		}
		if v.IsUnknown() && v.Type == "" {
			v.Type = declared[reg]
		}
		c.setRegister(reg, materialize(r, c, v))
	}
	if !m.IsStatic() {
		this := c.Register(params[0])
		if _, ok := this.ObjectRef(); !ok {
			return nil, fmt.Errorf("%w: %s needs a non-null this, got %s", ErrUnresolvedEntryState, m.Signature(), this)
		}
	}

	keys := make([]string, 0, len(state.Fields))
	for key := range state.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v := state.Fields[key]
		ref, err := dex.ParseFieldRef(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvedEntryState, err)
		}
		if v.IsUnknown() && v.Type == "" {
			v.Type = ref.Type
		}
		c.heap().setStatic(ref.String(), materialize(r, c, v))
		c.heap().markInitialized(ref.Class)
	}
	return c.seal(), nil
}

// materialize turns entry-state seeds into heap objects.
func materialize(r *run, c *Context, v Value) Value {
	if v.seed == nil {
		return v
	}
	if v.seed.object {
		return r.newObject(c, &Object{Class: v.Type, Opaque: true})
	}
	return r.internString(c, v.seed.text)
}
