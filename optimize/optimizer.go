// Package optimize rewrites methods using the facts of their execution
// graphs. Each pass applies only rewrites that hold in every recorded
// context; after any change the graph is rebuilt before the next pass.
package optimize

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/smalivm"
)

var tracer = otel.Tracer("github.com/speakeasy-api/simplify/optimize")

// Options configures the optimizer.
type Options struct {
	MaxOptimizationPasses int // Graph rebuilds per method (default: 100)

	ConstantPropagation bool // Replace computed constants with const loads (default: true)
	UnreachableCode     bool // Prune never-taken branches and unreached code (default: true)
	DeadCode            bool // Remove pure writes to dead registers (default: true)
	Peephole            bool // Local pattern rewrites (default: true)

	// VM configures the interpreter that builds each graph.
	VM smalivm.Options

	// Logging configuration
	LogLevel string         // "error", "warn", "info", "debug" (default: "warn")
	Logger   smalivm.Logger // Overrides LogLevel when set
}

// DefaultOptions returns the default optimizer configuration.
func DefaultOptions() Options {
	return Options{
		MaxOptimizationPasses: 100,
		ConstantPropagation:   true,
		UnreachableCode:       true,
		DeadCode:              true,
		Peephole:              true,
		VM:                    smalivm.DefaultOptions(),
		LogLevel:              "warn",
	}
}

func (o Options) logger() smalivm.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel == "" {
		return smalivm.NopLogger()
	}
	return smalivm.NewLogger(smalivm.ParseLogLevel(o.LogLevel), nil)
}

// MethodWriter receives rewritten methods.
type MethodWriter interface {
	WriteMethod(sig string, m *dex.Method) error
}

// Result is the outcome of optimizing one method.
type Result struct {
	Method     *dex.Method
	Changed    bool
	Iterations int            // Graphs built
	Partial    bool           // The last graph was partial
	Passes     map[string]int // Rewrites applied, by pass
	Warnings   []string
}

// Optimizer rewrites methods of one catalog.
type Optimizer struct {
	catalog smalivm.ClassCatalog
	vm      *smalivm.VirtualMachine
	opts    Options
	log     smalivm.Logger
}

// New returns an optimizer over catalog.
func New(catalog smalivm.ClassCatalog, opts ...Options) *Optimizer {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if catalog == nil {
		catalog = dex.NewCatalog()
	}
	log := opt.logger()
	vmOpts := opt.VM
	if vmOpts.Logger == nil && opt.Logger != nil {
		vmOpts.Logger = opt.Logger
	}
	return &Optimizer{
		catalog: catalog,
		vm:      smalivm.NewVirtualMachine(catalog, vmOpts),
		opts:    opt,
		log:     log,
	}
}

// OptimizeSignature optimizes the catalog method named by sig and hands the
// result to w if it changed. A nil writer only computes the result.
func (o *Optimizer) OptimizeSignature(ctx context.Context, sig string, w MethodWriter) (*Result, error) {
	m, ok := o.catalog.Method(sig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", smalivm.ErrMethodNotFound, sig)
	}
	res, err := o.Optimize(ctx, m)
	if err != nil {
		return nil, err
	}
	if w != nil && res.Changed {
		if err := w.WriteMethod(sig, res.Method); err != nil {
			return nil, fmt.Errorf("write %s: %w", sig, err)
		}
	}
	return res, nil
}

// Optimize rewrites m with every parameter unknown. m is not modified.
func (o *Optimizer) Optimize(ctx context.Context, m *dex.Method) (*Result, error) {
	return o.OptimizeWithState(ctx, m, nil)
}

// OptimizeWithState rewrites m assuming the entry state. Rewrites are only
// valid for executions that start in state.
func (o *Optimizer) OptimizeWithState(ctx context.Context, m *dex.Method, state *smalivm.InitialState) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "optimize.Optimize", trace.WithAttributes(
		attribute.String("method", m.Signature()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("iterations", res.Iterations),
				attribute.Bool("changed", res.Changed),
				attribute.Bool("partial", res.Partial),
			)
		}
		span.End()
	}()

	log := o.log.With(map[string]any{smalivm.FieldMethod: m.Signature()})
	res = &Result{Method: m.Clone(), Passes: map[string]int{}}
	seen := map[string]bool{}
	passes := o.passes()

	for res.Iterations < o.opts.MaxOptimizationPasses {
		g, err := o.vm.ExecuteMethod(ctx, res.Method, state)
		if err != nil {
			return nil, fmt.Errorf("optimize %s: %w", m.Signature(), err)
		}
		res.Iterations++
		res.Partial = g.IsPartial()
		for _, w := range g.Warnings {
			if !seen[w] {
				seen[w] = true
				res.Warnings = append(res.Warnings, w)
			}
		}

		next, name, n := o.round(ctx, passes, res.Method, g, log)
		if n == 0 {
			return res, nil
		}
		res.Method = next
		res.Changed = true
		res.Passes[name] += n
	}
	log.Warnf("stopped after %d graph rebuilds", res.Iterations)
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: optimization pass limit of %d reached", m.Signature(), o.opts.MaxOptimizationPasses))
	return res, nil
}

// round runs passes in order and stops at the first that changes the
// method, returning the rewritten method, the pass name and its change
// count.
func (o *Optimizer) round(ctx context.Context, passes []pass, m *dex.Method, g *smalivm.ExecutionGraph, log smalivm.Logger) (*dex.Method, string, int) {
	for _, p := range passes {
		_, span := tracer.Start(ctx, "optimize."+p.name)
		x := NewManipulator(m)
		p.run(&passState{
			method:  m,
			graph:   g,
			partial: g.IsPartial(),
			catalog: o.catalog,
			edit:    x,
		})
		n := x.Changes()
		span.SetAttributes(attribute.Int("changes", n))
		if n == 0 {
			span.End()
			continue
		}
		out, err := x.Apply()
		if err != nil {
			// A rejected rewrite leaves the method as it was.
			log.Errorf("%s: %v", p.name, err)
			span.RecordError(err)
			span.End()
			continue
		}
		log.Debugf("%s: %d changes", p.name, n)
		span.End()
		return out, p.name, n
	}
	return m, "", 0
}

type pass struct {
	name string
	run  func(*passState)
}

func (o *Optimizer) passes() []pass {
	var out []pass
	if o.opts.ConstantPropagation {
		out = append(out, pass{"constant-propagation", propagateConstants})
	}
	if o.opts.UnreachableCode {
		out = append(out, pass{"unreachable-code", pruneUnreachable})
	}
	if o.opts.DeadCode {
		out = append(out, pass{"dead-code", eliminateDeadCode})
	}
	if o.opts.Peephole {
		out = append(out, pass{"peephole", peephole})
	}
	return out
}

// passState is what a pass sees: the method, its graph, and the pending
// edit.
type passState struct {
	method  *dex.Method
	graph   *smalivm.ExecutionGraph
	partial bool
	catalog smalivm.ClassCatalog
	edit    *Manipulator
}

// settled reports whether the graph's facts at addr are complete enough to
// rewrite the instruction there.
func (s *passState) settled(addr int) bool {
	return !s.partial && s.graph.WasAddressReached(addr) && !s.graph.IsPossiblyNonTerminating(addr)
}

// mayThrow reports whether some recorded context throws at addr.
func (s *passState) mayThrow(addr int) bool {
	return s.graph.EdgeKinds(addr)[smalivm.EdgeException]
}
