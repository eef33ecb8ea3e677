package smalivm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	dex "github.com/speakeasy-api/simplify"
)

const guarded = `
.method static f(I)I
    .registers 3
    :try_start
    const/4 v0, 0x1
    div-int v1, v0, p0
    :try_end
    .catch Ljava/lang/ArithmeticException; {:try_start .. :try_end} :handler
    return v1
    :handler
    const/4 v1, -0x1
    return v1
.end method`

func TestHandlerCatchesArithmetic(t *testing.T) {
	g := execute(t, guarded, "LT;->f(I)I", nil, quiet())
	if diff := cmp.Diff([]int{3}, g.Successors(1, EdgeException)); diff != "" {
		t.Errorf("exception successors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, g.Successors(1, EdgeFallthrough)); diff != "" {
		t.Errorf("fallthrough successors (-want +got):\n%s", diff)
	}

	g = execute(t, guarded, "LT;->f(I)I", &InitialState{Registers: map[int]Value{2: Int(0)}}, quiet())
	if g.WasAddressReached(2) {
		t.Error("normal path reached for a zero divisor")
	}
	wantReturn(t, g, Int(-1))

	g = execute(t, guarded, "LT;->f(I)I", &InitialState{Registers: map[int]Value{2: Int(1)}}, quiet())
	if g.WasAddressReached(3) {
		t.Error("handler reached for a non-zero divisor")
	}
	wantReturn(t, g, Int(1))
}

func TestHandlerOrderAndCatchAll(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 2
    :try_start
    const/4 v0, 0x0
    throw v0
    :try_end
    .catch Ljava/lang/ArithmeticException; {:try_start .. :try_end} :arith
    .catchall {:try_start .. :try_end} :any
    :arith
    const/4 v1, 0x1
    return v1
    :any
    move-exception v1
    const/4 v1, 0x2
    return v1
.end method`, "LT;->f()I", nil, quiet())

	// Throwing null raises NullPointerException, which only the catch-all takes.
	if diff := cmp.Diff([]int{4}, g.Successors(1, EdgeException)); diff != "" {
		t.Errorf("exception successors (-want +got):\n%s", diff)
	}
	ctx := g.NodesAt(4)
	if len(ctx) != 1 || ctx[0].Exception == nil || ctx[0].Exception.Type != dex.ExcNullPointer {
		t.Fatalf("handler context = %v", ctx)
	}
	wantReturn(t, g, Int(2))
}

func TestUncaughtThrowIsTerminal(t *testing.T) {
	g := execute(t, `
.method static f()V
    .registers 1
    const/4 v0, 0x0
    throw v0
.end method`, "LT;->f()V", nil, quiet())
	if len(g.Terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(g.Terminals))
	}
	term := g.Terminals[0]
	if term.Kind != TerminalThrow || term.From != 1 || term.Value.Type != dex.ExcNullPointer {
		t.Errorf("terminal = %+v", term)
	}
	if !g.IsTerminal(1) {
		t.Error("IsTerminal(1) = false")
	}
	if diff := cmp.Diff([]int{ExitAddress}, g.Successors(1, EdgeException)); diff != "" {
		t.Errorf("exit edge (-want +got):\n%s", diff)
	}
}

const switchMethod = `
.method static sw(I)I
    .registers 2
    packed-switch p0, :pswitch_data
    const/4 v0, 0x0
    return v0
    :case_a
    const/16 v0, 0xa
    return v0
    :case_b
    const/16 v0, 0xb
    return v0
    :pswitch_data
    .packed-switch 0x1
        :case_a
        :case_b
    .end packed-switch
.end method`

func TestSwitch(t *testing.T) {
	g := execute(t, switchMethod, "LT;->sw(I)I", nil, quiet())
	if diff := cmp.Diff([]int{3, 5}, g.Successors(0, EdgeBranchTaken)); diff != "" {
		t.Errorf("unknown key targets (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, g.Successors(0, EdgeBranchNotTaken)); diff != "" {
		t.Errorf("unknown key default (-want +got):\n%s", diff)
	}

	g = execute(t, switchMethod, "LT;->sw(I)I", &InitialState{Registers: map[int]Value{1: Int(2)}}, quiet())
	if diff := cmp.Diff([]int{5}, g.Successors(0, EdgeBranchTaken)); diff != "" {
		t.Errorf("known key targets (-want +got):\n%s", diff)
	}
	wantReturn(t, g, Int(0xb))

	g = execute(t, switchMethod, "LT;->sw(I)I", &InitialState{Registers: map[int]Value{1: Int(9)}}, quiet())
	wantReturn(t, g, Int(0))
}

func TestSelfComparisonIsDecided(t *testing.T) {
	g := execute(t, `
.method static f(I)I
    .registers 2
    if-ne p0, p0, :other
    return p0
    :other
    const/4 v0, 0x0
    return v0
.end method`, "LT;->f(I)I", nil, quiet())
	if g.WasAddressReached(2) {
		t.Error("if-ne on one register took the branch")
	}
}

func TestArrays(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 4
    const/4 v0, 0x3
    new-array v1, v0, [I
    const/4 v2, 0x1
    const/16 v3, 0x2a
    aput v3, v1, v2
    aget v0, v1, v2
    array-length v2, v1
    add-int/2addr v0, v2
    return v0
.end method`, "LT;->f()I", nil, quiet())
	wantReturn(t, g, Int(45))
	for addr := 0; addr < 8; addr++ {
		if g.EdgeKinds(addr)[EdgeException] {
			t.Errorf("unexpected exception edge at %d", addr)
		}
	}
}

func TestArrayFaults(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"index out of range", `
.method static f()I
    .registers 3
    const/4 v0, 0x2
    new-array v1, v0, [I
    aget v2, v1, v0
    return v2
.end method`, dex.ExcArrayIndex},
		{"negative size", `
.method static f()I
    .registers 3
    const/4 v0, -0x1
    new-array v1, v0, [I
    const/4 v2, 0x0
    return v2
.end method`, dex.ExcNegativeArraySize},
		{"null array", `
.method static f()I
    .registers 3
    const/4 v0, 0x0
    array-length v1, v0
    return v1
.end method`, dex.ExcNullPointer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := execute(t, tt.body, "LT;->f()I", nil, quiet())
			if len(g.Terminals) != 1 || g.Terminals[0].Kind != TerminalThrow {
				t.Fatalf("terminals = %+v, want one throw", g.Terminals)
			}
			if got := g.Terminals[0].Value.Type; got != tt.want {
				t.Errorf("thrown %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFillArrayData(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 3
    const/4 v0, 0x3
    new-array v1, v0, [I
    fill-array-data v1, :data
    const/4 v0, 0x2
    aget v2, v1, v0
    return v2
    :data
    .array-data 4
        0x1
        0x2
        0x7
    .end array-data
.end method`, "LT;->f()I", nil, quiet())
	wantReturn(t, g, Int(7))
}

func TestInstanceFields(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 3
    new-instance v0, LT;
    const/4 v1, 0x7
    iput v1, v0, LT;->x:I
    iget v2, v0, LT;->x:I
    return v2
.end method`, "LT;->f()I", nil, quiet())
	wantReturn(t, g, Int(7))

	g = execute(t, `
.method static g(LT;)I
    .registers 2
    iget v0, p0, LT;->x:I
    return v0
.end method`, "LT;->g(LT;)I", nil, quiet())
	kinds := g.EdgeKinds(0)
	if !kinds[EdgeException] || !kinds[EdgeFallthrough] {
		t.Errorf("edge kinds on unknown receiver = %v", kinds)
	}

	g = execute(t, `
.method g()I
    .registers 2
    iget v0, p0, LT;->x:I
    return v0
.end method`, "LT;->g()I", nil, quiet())
	if g.EdgeKinds(0)[EdgeException] {
		t.Error("this dereference may throw")
	}
	v, _ := g.ReturnConsensus()
	if !v.IsUnknown() {
		t.Errorf("field of an unknown this = %s, want unknown", v)
	}
}

func TestWriteThroughUnknownReferenceClobbers(t *testing.T) {
	g := execute(t, `
.method static f(LT;)I
    .registers 4
    new-instance v0, LT;
    const/4 v1, 0x7
    iput v1, v0, LT;->x:I
    const/4 v2, 0x1
    iput v2, p0, LT;->x:I
    iget v1, v0, LT;->x:I
    return v1
.end method`, "LT;->f(LT;)I", nil, quiet())
	v, ok := g.ReturnConsensus()
	if !ok || !v.IsUnknown() {
		t.Errorf("field after aliasing write = %s (%v), want unknown", v, ok)
	}
}

const staticClass = `
.method static read()I
    .registers 2
    sget v0, LS;->K:I
    sget v1, LS;->C:I
    add-int/2addr v0, v1
    return v0
.end method`

func TestStaticFields(t *testing.T) {
	cat, err := dex.ParseCatalog(classHeader+staticClass, `
.class LS;
.super Ljava/lang/Object;
.field static final K:I = 0x5
.field static C:I = 0x3

.method static constructor <clinit>()V
    .registers 1
    const/16 v0, 0x9
    sput v0, LS;->C:I
    return-void
.end method`)
	if err != nil {
		t.Fatal(err)
	}
	run := func(opts Options, state *InitialState) *ExecutionGraph {
		g, err := NewVirtualMachine(cat, opts).Execute(t.Context(), "LT;->read()I", state)
		if err != nil {
			t.Fatal(err)
		}
		return g
	}

	g := run(quiet(), nil)
	v, _ := g.ConsensusAt(1, 0)
	if !v.IsUnknown() || v.Reason != ReasonStaticField {
		t.Errorf("K with a class initializer and no interpretation = %s, want unknown", v)
	}

	g = run(withOptions(func(o *Options) { o.RunStaticInitializers = true }), nil)
	wantReturn(t, g, Int(14))

	g = run(withOptions(func(o *Options) { o.RunStaticInitializers = true }), &InitialState{
		Fields: map[string]Value{"LS;->C:I": Int(4)},
	})
	// Seeded fields mark the class initialized, so K keeps no value.
	v, _ = g.ConsensusAt(1, 0)
	if !v.IsUnknown() {
		t.Errorf("K after seeding = %s, want unknown", v)
	}
	c, _ := g.ConsensusAt(2, 1)
	if !c.Same(Int(4)) {
		t.Errorf("seeded C = %s, want 4", c)
	}
}

func TestFinalStaticLiteral(t *testing.T) {
	g := execute(t, `
.field static final K:I = 0x5
.method static f()I
    .registers 1
    sget v0, LT;->K:I
    return v0
.end method`, "LT;->f()I", nil, quiet())
	wantReturn(t, g, Int(5))
}

func TestCheckCast(t *testing.T) {
	g := execute(t, `
.method static f()Ljava/lang/Object;
    .registers 1
    const-string v0, "a"
    check-cast v0, Ljava/lang/CharSequence;
    return-object v0
.end method`, "LT;->f()Ljava/lang/Object;", nil, quiet())
	if g.EdgeKinds(1)[EdgeException] {
		t.Error("valid cast may throw")
	}

	g = execute(t, `
.method static f()Ljava/lang/Object;
    .registers 1
    const-string v0, "a"
    check-cast v0, LT;
    return-object v0
.end method`, "LT;->f()Ljava/lang/Object;", nil, quiet())
	if g.WasAddressReached(2) {
		t.Error("failing cast fell through")
	}
	if len(g.Terminals) != 1 || g.Terminals[0].Value.Type != dex.ExcClassCast {
		t.Errorf("terminals = %+v", g.Terminals)
	}
}

func TestInstanceOf(t *testing.T) {
	g := execute(t, `
.method static f()Z
    .registers 2
    const-string v0, "a"
    instance-of v1, v0, Ljava/lang/Comparable;
    return v1
.end method`, "LT;->f()Z", nil, quiet())
	wantReturn(t, g, Boolean(true))
}

func TestReceiverTypeTests(t *testing.T) {
	cat, err := dex.ParseCatalog(classHeader+`
.method isSub()Z
    .registers 2
    instance-of v0, p0, LSub;
    return v0
.end method

.method isT()Z
    .registers 2
    instance-of v0, p0, LT;
    return v0
.end method

.method asSub()LSub;
    .registers 1
    check-cast p0, LSub;
    return-object p0
.end method

.method fresh()Z
    .registers 2
    new-instance v0, LT;
    instance-of v1, v0, LSub;
    return v1
.end method`, `
.class LSub;
.super LT;
`)
	if err != nil {
		t.Fatal(err)
	}
	vm := NewVirtualMachine(cat, quiet())
	run := func(sig string) *ExecutionGraph {
		g, err := vm.Execute(t.Context(), sig, nil)
		if err != nil {
			t.Fatal(err)
		}
		return g
	}

	if v, _ := run("LT;->isSub()Z").ReturnConsensus(); !v.IsUnknown() {
		t.Errorf("this instanceof LSub; = %s, want unknown", v)
	}
	wantReturn(t, run("LT;->isT()Z"), Boolean(true))
	wantReturn(t, run("LT;->fresh()Z"), Boolean(false))

	g := run("LT;->asSub()LSub;")
	if !g.WasAddressReached(1) {
		t.Error("cast of the receiver to a subclass never succeeds")
	}
	if !g.EdgeKinds(0)[EdgeException] {
		t.Error("cast of the receiver to a subclass cannot fail")
	}
}

func TestUnsupportedOpcodeDegrades(t *testing.T) {
	m := &dex.Method{
		Class:     "LT;",
		Name:      "f",
		Return:    dex.TypeObject,
		Access:    dex.AccStatic,
		Registers: 1,
		Instructions: []dex.Instruction{
			{Op: dex.OpConstMethodType, A: 0, Str: "(I)V"},
			{Op: dex.OpReturnObject, A: 0},
		},
	}
	g, err := NewVirtualMachine(nil, quiet()).ExecuteMethod(t.Context(), m, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := g.ReturnConsensus()
	if !ok || !v.IsUnknown() || v.Reason != ReasonUnsupported {
		t.Errorf("return = %s, want unsupported unknown", v)
	}
	if len(g.Warnings) == 0 {
		t.Error("no warning for unsupported opcode")
	}
}
