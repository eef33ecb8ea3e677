package smalivm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	dex "github.com/speakeasy-api/simplify"
)

const classHeader = `
.class public LT;
.super Ljava/lang/Object;
.field x:I
`

// execute parses a class LT; from body and explores sig.
func execute(t *testing.T, body, sig string, state *InitialState, opts ...Options) *ExecutionGraph {
	t.Helper()
	cat, err := dex.ParseCatalog(classHeader + body)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	g, err := NewVirtualMachine(cat, opts...).Execute(context.Background(), sig, state)
	if err != nil {
		t.Fatalf("Execute(%s): %v", sig, err)
	}
	return g
}

func withOptions(f func(o *Options)) Options {
	o := DefaultOptions()
	o.LogLevel = ""
	f(&o)
	return o
}

func quiet() Options { return withOptions(func(*Options) {}) }

func wantReturn(t *testing.T, g *ExecutionGraph, want Value) {
	t.Helper()
	got, ok := g.ReturnConsensus()
	if !ok {
		t.Fatalf("no return consensus; terminals=%d", len(g.Terminals))
	}
	if !got.Same(want) {
		t.Errorf("return = %s, want %s", got, want)
	}
}

func TestKnownBranchTakesOneArm(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 2
    const/4 v0, 0x5
    const/4 v1, 0x5
    if-eq v0, v1, :same
    const/4 v0, 0x0
    return v0
    :same
    const/4 v0, 0x1
    return v0
.end method`, "LT;->f()I", nil, quiet())

	if diff := cmp.Diff([]int{5}, g.Successors(2, EdgeBranchTaken)); diff != "" {
		t.Errorf("taken successors (-want +got):\n%s", diff)
	}
	if got := g.Successors(2, EdgeBranchNotTaken); len(got) != 0 {
		t.Errorf("not-taken successors = %v, want none", got)
	}
	if g.WasAddressReached(3) || g.WasAddressReached(4) {
		t.Error("untaken arm was reached")
	}
	if g.IsPartial() {
		t.Error("graph is partial")
	}
	wantReturn(t, g, Int(1))
}

func TestUnknownParametersStayUnknown(t *testing.T) {
	body := `
.method static add(II)I
    .registers 3
    add-int v0, p0, p1
    return v0
.end method`
	g := execute(t, body, "LT;->add(II)I", nil, quiet())
	v, ok := g.ConsensusAt(1, 0)
	if !ok {
		t.Fatal("no consensus at return")
	}
	if !v.IsUnknown() || v.Type != dex.TypeInt {
		t.Errorf("v0 at return = %s, want unknown int", v)
	}

	g = execute(t, body, "LT;->add(II)I", &InitialState{Registers: map[int]Value{1: Int(2), 2: Int(3)}}, quiet())
	wantReturn(t, g, Int(5))
}

func TestSelfLoopHitsVisitBudget(t *testing.T) {
	opts := withOptions(func(o *Options) { o.MaxAddressVisits = 16 })
	g := execute(t, `
.method static spin(I)V
    .registers 3
    const/4 v0, 0x0
    :loop
    add-int/lit8 v0, v0, 0x1
    add-int/lit8 v2, v2, 0x1
    goto :loop
.end method`, "LT;->spin(I)V", nil, opts)

	if !g.IsPossiblyNonTerminating(1) {
		t.Error("loop head not marked possibly non-terminating")
	}
	if !g.IsPartial() {
		t.Error("graph not partial")
	}
	if len(g.Budget.VisitCapped) == 0 {
		t.Errorf("budget report = %s, want visit cap", g.Budget)
	}
	if len(g.Terminals) != 0 {
		t.Errorf("terminals = %d, want 0", len(g.Terminals))
	}
}

func TestSelfLoopFromUnknownStart(t *testing.T) {
	opts := withOptions(func(o *Options) { o.MaxAddressVisits = 16 })
	g := execute(t, `
.method static spin(I)V
    .registers 2
    move v0, p0
    :loop
    add-int/lit8 v0, v0, 0x1
    goto :loop
.end method`, "LT;->spin(I)V", nil, opts)

	if !g.IsPossiblyNonTerminating(1) {
		t.Errorf("loop head not marked possibly non-terminating; budget = %s", g.Budget)
	}
	if !g.IsPartial() {
		t.Error("graph not partial")
	}
	if len(g.Terminals) != 0 {
		t.Errorf("terminals = %d, want 0", len(g.Terminals))
	}
	if len(g.Warnings) == 0 {
		t.Error("no warning for the non-terminating loop")
	}
}

func TestCoveredArrivalsCountAsVisits(t *testing.T) {
	body := `
.method static drain(I)I
    .registers 2
    move v0, p0
    :loop
    if-eqz v0, :done
    add-int/lit8 v0, v0, -0x1
    goto :loop
    :done
    return v0
.end method`
	g := execute(t, body, "LT;->drain(I)I", nil, quiet())
	if g.IsPartial() || g.IsPossiblyNonTerminating(1) {
		t.Fatalf("converged loop cut off; budget = %s", g.Budget)
	}
	if got := len(g.NodesAt(1)); got != 1 {
		t.Errorf("contexts at loop head = %d, want 1", got)
	}

	g = execute(t, body, "LT;->drain(I)I", nil, withOptions(func(o *Options) { o.MaxAddressVisits = 2 }))
	if !g.IsPossiblyNonTerminating(1) {
		t.Errorf("loop head not capped by its repeated arrival; budget = %s", g.Budget)
	}
}

func TestExecuteErrors(t *testing.T) {
	cat, err := dex.ParseCatalog(classHeader + `
.method f()V
    .registers 1
    return-void
.end method
.method abstract g()V
.end method`)
	if err != nil {
		t.Fatal(err)
	}
	vm := NewVirtualMachine(cat, quiet())
	tests := []struct {
		name  string
		sig   string
		state *InitialState
		want  error
	}{
		{"missing class", "LMissing;->f()V", nil, ErrClassNotFound},
		{"missing method", "LT;->nope()V", nil, ErrMethodNotFound},
		{"no body", "LT;->g()V", nil, ErrMethodNotFound},
		{"null this", "LT;->f()V", &InitialState{Registers: map[int]Value{0: Null("LT;")}}, ErrUnresolvedEntryState},
		{"register range", "LT;->f()V", &InitialState{Registers: map[int]Value{4: Int(1)}}, ErrUnresolvedEntryState},
		{"bad field", "LT;->f()V", &InitialState{Fields: map[string]Value{"nonsense": Int(1)}}, ErrUnresolvedEntryState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vm.Execute(context.Background(), tt.sig, tt.state)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInvariantViolationIsAnError(t *testing.T) {
	m := &dex.Method{
		Class:     "LT;",
		Name:      "f",
		Return:    dex.TypeVoid,
		Access:    dex.AccStatic,
		Registers: 1,
		Instructions: []dex.Instruction{
			{Op: dex.OpConst, A: 0, Literal: 1},
		},
	}
	_, err := NewVirtualMachine(nil, quiet()).ExecuteMethod(context.Background(), m, nil)
	var iv *InvariantViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("err = %v, want InvariantViolationError", err)
	}
	if !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("err does not wrap ErrInvariantViolation")
	}
}

const countLoop = `
.method static count(I)I
    .registers 3
    const/4 v0, 0x0
    :loop
    if-ge v0, p0, :done
    add-int/lit8 v0, v0, 0x1
    goto :loop
    :done
    return v0
.end method`

func TestFingerprintIsDeterministic(t *testing.T) {
	state := &InitialState{Registers: map[int]Value{2: Int(6)}}
	a := execute(t, countLoop, "LT;->count(I)I", state, quiet())
	b := execute(t, countLoop, "LT;->count(I)I", state, quiet())
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same input produced different fingerprints")
	}
	wantReturn(t, a, Int(6))

	c := execute(t, countLoop, "LT;->count(I)I", &InitialState{Registers: map[int]Value{2: Int(5)}}, quiet())
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different inputs produced the same fingerprint")
	}
}

func TestCancelledContextMarksPartial(t *testing.T) {
	cat, err := dex.ParseCatalog(classHeader + countLoop)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := withOptions(func(o *Options) {
		o.MaxContextsPerNode = 10000
		o.MaxAddressVisits = 10000
	})
	g, err := NewVirtualMachine(cat, opts).Execute(ctx, "LT;->count(I)I", &InitialState{Registers: map[int]Value{2: Int(1000)}})
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsPartial() || !g.Budget.TimeExceeded {
		t.Errorf("partial=%v budget=%s, want time budget exceeded", g.IsPartial(), g.Budget)
	}
	if len(g.Warnings) == 0 {
		t.Error("no warning recorded")
	}
}

func TestInstructionBudget(t *testing.T) {
	opts := withOptions(func(o *Options) { o.MaxInstructionEvaluations = 20 })
	g := execute(t, countLoop, "LT;->count(I)I", &InitialState{Registers: map[int]Value{2: Int(100)}}, opts)
	if !g.IsPartial() || !g.Budget.InstructionsExceeded {
		t.Errorf("partial=%v budget=%s", g.IsPartial(), g.Budget)
	}
}

func TestTreeListsAddresses(t *testing.T) {
	g := execute(t, countLoop, "LT;->count(I)I", &InitialState{Registers: map[int]Value{2: Int(1)}}, quiet())
	out := g.Tree().String()
	for _, want := range []string{"LT;->count(I)I", "0: const v0, 0x0", "return"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
}
