package optimize

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/smalivm"
)

const classHeader = `
.class public LT;
.super Ljava/lang/Object;
`

func catalog(t *testing.T, body string) *dex.Catalog {
	t.Helper()
	cat, err := dex.ParseCatalog(classHeader + body)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return cat
}

func quiet(f func(o *Options)) Options {
	o := DefaultOptions()
	o.LogLevel = ""
	o.VM.LogLevel = ""
	if f != nil {
		f(&o)
	}
	return o
}

func optimize(t *testing.T, body, sig string, opts Options) (*Result, *dex.Method) {
	t.Helper()
	cat := catalog(t, body)
	m, ok := cat.Method(sig)
	if !ok {
		t.Fatalf("method %s not found", sig)
	}
	res, err := New(cat, opts).Optimize(context.Background(), m)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	return res, m
}

func render(m *dex.Method) []string {
	out := make([]string, len(m.Instructions))
	for i := range m.Instructions {
		out[i] = m.Instructions[i].String()
	}
	return out
}

func TestConstantBranchIsRemoved(t *testing.T) {
	res, orig := optimize(t, `
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
.end method`, "LT;->f()I", quiet(nil))

	want := []string{"const v0, 0x1", "return v0"}
	if diff := cmp.Diff(want, render(res.Method)); diff != "" {
		t.Errorf("optimized method (-want +got):\n%s", diff)
	}
	if !res.Changed || res.Partial {
		t.Errorf("changed=%v partial=%v", res.Changed, res.Partial)
	}
	if res.Passes["unreachable-code"] == 0 || res.Passes["dead-code"] == 0 {
		t.Errorf("passes = %v", res.Passes)
	}
	if len(orig.Instructions) != 7 {
		t.Error("input method was modified")
	}
}

func TestUnknownSumIsUnchanged(t *testing.T) {
	res, orig := optimize(t, `
.method static add(II)I
    .registers 3
    add-int v0, p0, p1
    return v0
.end method`, "LT;->add(II)I", quiet(nil))
	if res.Changed {
		t.Errorf("method changed:\n%v", render(res.Method))
	}
	if diff := cmp.Diff(render(orig), render(res.Method)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", res.Iterations)
	}
}

func TestPartialGraphOnlyFoldsLocally(t *testing.T) {
	opts := quiet(func(o *Options) { o.VM.MaxAddressVisits = 16 })
	res, _ := optimize(t, `
.method static spin(I)V
    .registers 4
    const/4 v1, 0x2
    add-int/lit8 v3, v1, 0x3
    const/4 v0, 0x0
    :loop
    add-int/lit8 v0, v0, 0x1
    add-int/lit8 v2, v2, 0x1
    goto :loop
.end method`, "LT;->spin(I)V", opts)

	if !res.Partial {
		t.Fatal("graph not partial")
	}
	want := []string{
		"const v1, 0x2",
		"const v3, 0x5",
		"const v0, 0x0",
		"add-int/lit v0, v0, 0x1",
		"add-int/lit v2, v2, 0x1",
		"goto @3",
	}
	if diff := cmp.Diff(want, render(res.Method)); diff != "" {
		t.Errorf("optimized method (-want +got):\n%s", diff)
	}
	if res.Passes["dead-code"] != 0 || res.Passes["unreachable-code"] != 0 {
		t.Errorf("removal passes ran on a partial graph: %v", res.Passes)
	}
	if len(res.Warnings) == 0 {
		t.Error("no budget warning carried to the result")
	}
}

func TestCalleeResultIsFolded(t *testing.T) {
	res, _ := optimize(t, `
.method static f()I
    .registers 1
    const-string v0, "hello"
    invoke-virtual {v0}, Ljava/lang/String;->length()I
    move-result v0
    return v0
.end method`, "LT;->f()I", quiet(nil))
	want := []string{
		`const-string v0, "hello"`,
		`invoke-virtual {v0}, Ljava/lang/String;->length()I`,
		"const v0, 0x5",
		"return v0",
	}
	if diff := cmp.Diff(want, render(res.Method)); diff != "" {
		t.Errorf("optimized method (-want +got):\n%s", diff)
	}
}

func TestReceiverMayBeASubclass(t *testing.T) {
	body := `
.method isSub()I
    .registers 2
    instance-of v0, p0, LSub;
    if-eqz v0, :no
    const/4 v0, 0x1
    return v0
    :no
    const/4 v0, 0x0
    return v0
.end method

.method m()I
    .registers 2
    const/4 v0, 0x1
    return v0
.end method

.method g()I
    .registers 2
    invoke-virtual {p0}, LT;->m()I
    move-result v0
    return v0
.end method

.class LSub;
.super LT;

.method m()I
    .registers 2
    const/4 v0, 0x2
    return v0
.end method`
	for _, sig := range []string{"LT;->isSub()I", "LT;->g()I"} {
		t.Run(sig, func(t *testing.T) {
			res, orig := optimize(t, body, sig, quiet(nil))
			if diff := cmp.Diff(render(orig), render(res.Method)); diff != "" {
				t.Errorf("method rewritten (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeadCodeKeepsThrowingAndHandlerUses(t *testing.T) {
	body := `
.method static f(I[I)I
    .registers 4
    const/4 v0, 0x7
    :try_start
    div-int v1, p0, p0
    :try_end
    .catch Ljava/lang/ArithmeticException; {:try_start .. :try_end} :handler
    array-length v1, p1
    return p0
    :handler
    return v0
.end method`
	res, orig := optimize(t, body, "LT;->f(I[I)I", quiet(nil))
	if diff := cmp.Diff(render(orig), render(res.Method)); diff != "" {
		t.Errorf("live or throwing instructions removed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(orig.Handlers, res.Method.Handlers); diff != "" {
		t.Errorf("handlers changed (-want +got):\n%s", diff)
	}
}

func TestOptimizationIsIdempotent(t *testing.T) {
	body := `
.method static f(I)I
    .registers 4
    const/4 v0, 0x3
    mul-int/lit8 v1, v0, 0x4
    if-gtz v1, :pos
    nop
    return p0
    :pos
    move v2, v2
    add-int v1, v1, p0
    goto :out
    :out
    return v1
.end method`
	res, _ := optimize(t, body, "LT;->f(I)I", quiet(nil))
	if !res.Changed {
		t.Fatal("nothing optimized")
	}
	again, err := New(catalog(t, body), quiet(nil)).Optimize(context.Background(), res.Method)
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed {
		t.Errorf("second run changed the method:\n%s", cmp.Diff(render(res.Method), render(again.Method)))
	}
}

// TestFoldingIsSound checks that optimized methods return what the
// originals return for a range of inputs.
func TestFoldingIsSound(t *testing.T) {
	body := `
.method static f(I)I
    .registers 5
    const/4 v0, 0x3
    mul-int/lit8 v1, v0, 0x4
    if-lt p0, v1, :small
    sub-int v2, p0, v1
    neg-int v3, v2
    neg-int v3, v3
    return v3
    :small
    packed-switch p0, :table
    const/4 v2, -0x1
    return v2
    :one
    add-int/lit8 v2, v1, 0x1
    return v2
    :table
    .packed-switch 0x1
        :one
    .end packed-switch
.end method`
	cat := catalog(t, body)
	m, _ := cat.Method("LT;->f(I)I")
	res, err := New(cat, quiet(nil)).Optimize(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed {
		t.Fatal("nothing optimized")
	}
	vm := smalivm.NewVirtualMachine(cat, quiet(nil).VM)
	for _, in := range []int32{-5, 0, 1, 2, 11, 12, 13, 100} {
		state := &smalivm.InitialState{Registers: map[int]smalivm.Value{4: smalivm.Int(in)}}
		before, err := vm.ExecuteMethod(context.Background(), m, state)
		if err != nil {
			t.Fatal(err)
		}
		after, err := vm.ExecuteMethod(context.Background(), res.Method, state)
		if err != nil {
			t.Fatal(err)
		}
		want, ok1 := before.ReturnConsensus()
		got, ok2 := after.ReturnConsensus()
		if !ok1 || !ok2 || !want.Same(got) {
			t.Errorf("f(%d): original %s, optimized %s", in, want, got)
		}
	}
}

func TestOptimizeSignatureWrites(t *testing.T) {
	cat := catalog(t, `
.method static f()I
    .registers 1
    const/4 v0, 0x1
    nop
    return v0
.end method`)
	w := memWriter(map[string]*dex.Method{})
	res, err := New(cat, quiet(nil)).OptimizeSignature(context.Background(), "LT;->f()I", w)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(w["LT;->f()I"].Instructions); got != 2 || !res.Changed {
		t.Errorf("written method has %d instructions, changed=%v", got, res.Changed)
	}
	if _, err := New(cat, quiet(nil)).OptimizeSignature(context.Background(), "LT;->g()V", w); err == nil {
		t.Error("missing method did not fail")
	}
}

type memWriter map[string]*dex.Method

func (w memWriter) WriteMethod(sig string, m *dex.Method) error {
	w[sig] = m
	return nil
}
