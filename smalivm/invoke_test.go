package smalivm

import (
	"testing"

	dex "github.com/speakeasy-api/simplify"
)

func TestInterpretedCallee(t *testing.T) {
	g := execute(t, `
.method static add(II)I
    .registers 3
    add-int v0, p0, p1
    return v0
.end method

.method static f()I
    .registers 2
    const/4 v0, 0x2
    const/4 v1, 0x3
    invoke-static {v0, v1}, LT;->add(II)I
    move-result v0
    return v0
.end method`, "LT;->f()I", nil, quiet())
	wantReturn(t, g, Int(5))
	if g.EdgeKinds(2)[EdgeException] {
		t.Error("interpreted call that cannot throw has an exception edge")
	}
}

func TestCalleeExceptionReachesCaller(t *testing.T) {
	g := execute(t, `
.method static boom()V
    .registers 1
    const/4 v0, 0x0
    throw v0
.end method

.method static f()I
    .registers 1
    :try_start
    invoke-static {}, LT;->boom()V
    :try_end
    .catch Ljava/lang/NullPointerException; {:try_start .. :try_end} :caught
    const/4 v0, 0x0
    return v0
    :caught
    const/4 v0, 0x1
    return v0
.end method`, "LT;->f()I", nil, quiet())
	if g.WasAddressReached(1) {
		t.Error("fallthrough reached after a call that always throws")
	}
	wantReturn(t, g, Int(1))
}

func TestRecursionHitsCallDepth(t *testing.T) {
	opts := withOptions(func(o *Options) { o.MaxCallDepth = 3 })
	g := execute(t, `
.method static rec(I)I
    .registers 2
    invoke-static {p0}, LT;->rec(I)I
    move-result v0
    return v0
.end method`, "LT;->rec(I)I", nil, opts)
	if !g.IsPartial() {
		t.Error("graph not partial")
	}
	if g.Budget.CallDepthExceeded == 0 {
		t.Errorf("budget report = %s, want call depth exceeded", g.Budget)
	}
	v, _ := g.ReturnConsensus()
	if !v.IsUnknown() {
		t.Errorf("return = %s, want unknown", v)
	}
}

const touchField = `
.method static f()I
    .registers 3
    new-instance v0, LT;
    const/4 v1, 0x7
    iput v1, v0, LT;->x:I
    invoke-static {v0}, LOther;->touch(LT;)V
    iget v2, v0, LT;->x:I
    return v2
.end method`

func TestOpaqueCallClobbersArguments(t *testing.T) {
	g := execute(t, touchField, "LT;->f()I", nil, quiet())
	v, ok := g.ReturnConsensus()
	if !ok || !v.IsUnknown() {
		t.Errorf("field after opaque call = %s (%v), want unknown", v, ok)
	}
	if !g.EdgeKinds(3)[EdgeException] {
		t.Error("opaque call has no exception edge")
	}

	g = execute(t, touchField, "LT;->f()I", nil, withOptions(func(o *Options) { o.OpaqueCallsMayThrow = false }))
	if g.EdgeKinds(3)[EdgeException] {
		t.Error("exception edge with OpaqueCallsMayThrow off")
	}
}

func TestUnrelatedObjectsSurviveOpaqueCall(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 4
    new-instance v0, LT;
    const/4 v1, 0x7
    iput v1, v0, LT;->x:I
    new-instance v3, LT;
    invoke-static {v3}, LOther;->touch(LT;)V
    iget v2, v0, LT;->x:I
    return v2
.end method`, "LT;->f()I", nil, withOptions(func(o *Options) { o.OpaqueCallsMayThrow = false }))
	wantReturn(t, g, Int(7))
}

func TestEmulatedString(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 1
    const-string v0, "hello"
    invoke-virtual {v0}, Ljava/lang/String;->length()I
    move-result v0
    return v0
.end method`, "LT;->f()I", nil, quiet())
	wantReturn(t, g, Int(5))
	if g.EdgeKinds(1)[EdgeException] {
		t.Error("length on a known string may throw")
	}
}

func TestEmulatedStringBuilder(t *testing.T) {
	g := execute(t, `
.method static f()Ljava/lang/String;
    .registers 2
    new-instance v0, Ljava/lang/StringBuilder;
    invoke-direct {v0}, Ljava/lang/StringBuilder;-><init>()V
    const-string v1, "a"
    invoke-virtual {v0, v1}, Ljava/lang/StringBuilder;->append(Ljava/lang/String;)Ljava/lang/StringBuilder;
    const/16 v1, 0x2a
    invoke-virtual {v0, v1}, Ljava/lang/StringBuilder;->append(I)Ljava/lang/StringBuilder;
    invoke-virtual {v0}, Ljava/lang/StringBuilder;->toString()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method`, "LT;->f()Ljava/lang/String;", nil, quiet())
	s, ok := g.ReturnedString()
	if !ok || s != "a42" {
		t.Errorf("ReturnedString = %q, %v; want \"a42\"", s, ok)
	}
}

func TestEmulatedReflection(t *testing.T) {
	g := execute(t, `
.method static f()Ljava/lang/String;
    .registers 1
    const-string v0, "java.lang.String"
    invoke-static {v0}, Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;
    move-result-object v0
    invoke-virtual {v0}, Ljava/lang/Class;->getName()Ljava/lang/String;
    move-result-object v0
    return-object v0
.end method`, "LT;->f()Ljava/lang/String;", nil, quiet())
	s, ok := g.ReturnedString()
	if !ok || s != "java.lang.String" {
		t.Errorf("ReturnedString = %q, %v", s, ok)
	}
	if g.EdgeKinds(1)[EdgeException] {
		t.Error("forName on a known class may throw")
	}

	g = execute(t, `
.method static f()Ljava/lang/Class;
    .registers 1
    const-string v0, "com.example.Missing"
    invoke-static {v0}, Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;
    move-result-object v0
    return-object v0
.end method`, "LT;->f()Ljava/lang/Class;", nil, quiet())
	kinds := g.EdgeKinds(1)
	if !kinds[EdgeException] || !kinds[EdgeFallthrough] {
		t.Errorf("edge kinds for a missing class = %v", kinds)
	}
}

func TestEmulationCanBeDisabled(t *testing.T) {
	g := execute(t, `
.method static f()I
    .registers 1
    const-string v0, "hello"
    invoke-virtual {v0}, Ljava/lang/String;->length()I
    move-result v0
    return v0
.end method`, "LT;->f()I", nil, withOptions(func(o *Options) { o.EmulateJDK = false }))
	v, _ := g.ReturnConsensus()
	if !v.IsUnknown() || v.Reason != ReasonOpaqueCall {
		t.Errorf("return = %s, want opaque result", v)
	}
}

func TestVirtualDispatch(t *testing.T) {
	cat, err := dex.ParseCatalog(`
.class LBase;
.super Ljava/lang/Object;

.method m()I
    .registers 2
    const/4 v0, 0x1
    return v0
.end method

.method static f()I
    .registers 2
    new-instance v0, LSub;
    invoke-virtual {v0}, LBase;->m()I
    move-result v1
    return v1
.end method

.method g()I
    .registers 2
    invoke-virtual {p0}, LBase;->m()I
    move-result v0
    return v0
.end method`, `
.class LSub;
.super LBase;

.method m()I
    .registers 2
    const/4 v0, 0x2
    return v0
.end method

.method k()I
    .registers 2
    invoke-virtual {p0}, LBase;->m()I
    move-result v0
    return v0
.end method`)
	if err != nil {
		t.Fatal(err)
	}
	vm := NewVirtualMachine(cat, quiet())
	g, err := vm.Execute(t.Context(), "LBase;->f()I", nil)
	if err != nil {
		t.Fatal(err)
	}
	wantReturn(t, g, Int(2))

	// The receiver of LBase;->g()I may be an LSub;.
	g, err = vm.Execute(t.Context(), "LBase;->g()I", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := g.ReturnConsensus(); !v.IsUnknown() {
		t.Errorf("g() = %s, want unknown", v)
	}

	// Nothing below LSub; overrides m.
	g, err = vm.Execute(t.Context(), "LSub;->k()I", nil)
	if err != nil {
		t.Fatal(err)
	}
	wantReturn(t, g, Int(2))
}
