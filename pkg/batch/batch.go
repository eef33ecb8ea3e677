// Package batch optimizes every method named by a YAML batch document and
// renders the results back to assembly.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/optimize"
	"github.com/speakeasy-api/simplify/pkg/smalifmt"
)

// Options configures a batch run.
type Options struct {
	Optimize optimize.Options
	Format   smalifmt.Config
	// Workers bounds the methods optimized at once; zero uses GOMAXPROCS.
	Workers int
	// Writer, if set, also receives every changed method.
	Writer optimize.MethodWriter
}

// DefaultOptions returns the default batch configuration.
func DefaultOptions() Options {
	return Options{Optimize: optimize.DefaultOptions()}
}

// MethodResult is the outcome for one method.
type MethodResult struct {
	Signature  string         `yaml:"signature"`
	Changed    bool           `yaml:"changed"`
	Partial    bool           `yaml:"partial,omitempty"`
	Iterations int            `yaml:"iterations"`
	Passes     map[string]int `yaml:"passes,omitempty"`
	Warnings   []string       `yaml:"warnings,omitempty"`
	Error      string         `yaml:"error,omitempty"`
	Assembly   string         `yaml:"assembly,omitempty"`
}

// BatchResult lists the method results in signature order.
type BatchResult struct {
	Methods []MethodResult `yaml:"methods"`
}

// Failed reports whether any method could not be optimized.
func (r *BatchResult) Failed() bool {
	for _, m := range r.Methods {
		if m.Error != "" {
			return true
		}
	}
	return false
}

// Warnings returns every warning and error, prefixed by signature.
func (r *BatchResult) Warnings() []string {
	var out []string
	for _, m := range r.Methods {
		if m.Error != "" {
			out = append(out, m.Signature+": "+m.Error)
		}
		for _, w := range m.Warnings {
			out = append(out, m.Signature+": "+w)
		}
	}
	return out
}

// YAML renders the result with assembly as literal blocks.
func (r *BatchResult) YAML() ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(r); err != nil {
		return nil, err
	}
	literalAssembly(&node)
	return yaml.Marshal(&node)
}

func literalAssembly(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "assembly" {
				n.Content[i+1].Style = yaml.LiteralStyle
			}
		}
	}
	for _, c := range n.Content {
		literalAssembly(c)
	}
}

// OptimizeDocument parses a batch document, optimizes its targets and
// returns the per-method results. Errors of single methods are recorded
// on their result; the returned error covers the document itself.
func OptimizeDocument(ctx context.Context, src []byte, opts Options) (*BatchResult, error) {
	doc, err := ParseDocument(src)
	if err != nil {
		return nil, err
	}
	cat, err := dex.ParseCatalog(doc.Classes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse classes: %w", err)
	}
	sigs, err := ResolveTargets(cat, doc.Targets)
	if err != nil {
		return nil, err
	}
	for sig := range doc.Initial {
		if _, ok := cat.Method(sig); !ok {
			return nil, fmt.Errorf("initial state for unknown method %s", sig)
		}
	}
	return Run(ctx, cat, sigs, doc.Initial, opts)
}

// ResolveTargets expands "*" and class descriptors into the sorted
// signatures of methods with a body.
func ResolveTargets(cat *dex.Catalog, targets []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(m *dex.Method) {
		if sig := m.Signature(); m.HasBody() && !seen[sig] {
			seen[sig] = true
			out = append(out, sig)
		}
	}
	for _, t := range targets {
		switch {
		case t == "*":
			for _, c := range cat.Classes() {
				for _, m := range c.Methods {
					add(m)
				}
			}
		case strings.Contains(t, "->"):
			m, ok := cat.Method(t)
			if !ok {
				return nil, fmt.Errorf("method %s not found", t)
			}
			add(m)
		default:
			c, ok := cat.Class(t)
			if !ok {
				return nil, fmt.Errorf("class %s not found", t)
			}
			for _, m := range c.Methods {
				add(m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run optimizes sigs of cat in parallel.
func Run(ctx context.Context, cat *dex.Catalog, sigs []string, seeds map[string]map[string]*yaml.Node, opts Options) (*BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	w := &collector{next: opts.Writer}
	results := make([]MethodResult, len(sigs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sig := range sigs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = optimizeOne(ctx, cat, sig, seeds[sig], opts, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &BatchResult{Methods: results}, nil
}

func optimizeOne(ctx context.Context, cat *dex.Catalog, sig string, seeds map[string]*yaml.Node, opts Options, w *collector) MethodResult {
	out := MethodResult{Signature: sig}
	m, _ := cat.Method(sig)
	state, err := initialState(m, seeds)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := optimize.New(cat, opts.Optimize).OptimizeWithState(ctx, m, state)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Changed, out.Partial, out.Iterations, out.Warnings = res.Changed, res.Partial, res.Iterations, res.Warnings
	if len(res.Passes) > 0 {
		out.Passes = res.Passes
	}
	if res.Changed {
		if err := w.WriteMethod(sig, res.Method); err != nil {
			out.Error = err.Error()
			return out
		}
	}
	text, err := smalifmt.Format(res.Method, opts.Format)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Assembly = text
	return out
}

// collector is the MethodWriter of a batch. It serializes writes to the
// caller's writer.
type collector struct {
	mu   sync.Mutex
	next optimize.MethodWriter
}

func (c *collector) WriteMethod(sig string, m *dex.Method) error {
	if c.next == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next.WriteMethod(sig, m)
}
