package optimize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	dex "github.com/speakeasy-api/simplify"
)

func TestPeephole(t *testing.T) {
	tests := []struct {
		name string
		body string
		sig  string
		want []string
	}{
		{
			name: "forName of a known class",
			body: `
.method static f()Ljava/lang/Class;
    .registers 2
    const-string v0, "java.lang.String"
    invoke-static {v0}, Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;
    move-result-object v1
    return-object v1
.end method`,
			sig:  "LT;->f()Ljava/lang/Class;",
			want: []string{"const-class v1, Ljava/lang/String;", "return-object v1"},
		},
		{
			name: "forName of a missing class stays",
			body: `
.method static f()Ljava/lang/Class;
    .registers 2
    const-string v0, "com.example.Missing"
    invoke-static {v0}, Ljava/lang/Class;->forName(Ljava/lang/String;)Ljava/lang/Class;
    move-result-object v1
    return-object v1
.end method`,
			sig: "LT;->f()Ljava/lang/Class;",
			want: []string{
				`const-string v0, "com.example.Missing"`,
				"invoke-static {v0}, " + forNameRef,
				"move-result-object v1",
				"return-object v1",
			},
		},
		{
			name: "redundant check-cast",
			body: `
.method static f()Ljava/lang/Object;
    .registers 1
    const-string v0, "a"
    check-cast v0, Ljava/lang/CharSequence;
    return-object v0
.end method`,
			sig:  "LT;->f()Ljava/lang/Object;",
			want: []string{`const-string v0, "a"`, "return-object v0"},
		},
		{
			name: "check-cast of an unknown value stays",
			body: `
.method static f(Ljava/lang/Object;)Ljava/lang/Object;
    .registers 1
    check-cast p0, Ljava/lang/CharSequence;
    return-object p0
.end method`,
			sig:  "LT;->f(Ljava/lang/Object;)Ljava/lang/Object;",
			want: []string{"check-cast v0, Ljava/lang/CharSequence;", "return-object v0"},
		},
		{
			name: "double negation",
			body: `
.method static f(J)J
    .registers 4
    neg-long v0, p0
    neg-long v0, v0
    return-wide v0
.end method`,
			sig:  "LT;->f(J)J",
			want: []string{"move-wide v0, v2", "return-wide v0"},
		},
		{
			name: "self move and nop",
			body: `
.method static f(I)I
    .registers 1
    nop
    move p0, p0
    return p0
.end method`,
			sig:  "LT;->f(I)I",
			want: []string{"return v0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := optimize(t, tt.body, tt.sig, quiet(nil))
			if diff := cmp.Diff(tt.want, render(res.Method)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelfComparisonPeepholeOnPartialGraph(t *testing.T) {
	opts := quiet(func(o *Options) { o.VM.MaxAddressVisits = 8 })
	res, _ := optimize(t, `
.method static f(I)V
    .registers 2
    const/4 v0, 0x0
    :top
    if-eq p0, p0, :next
    :next
    add-int/lit8 v0, v0, 0x1
    if-ne p0, p0, :top
    goto :top
.end method`, "LT;->f(I)V", opts)
	if !res.Partial {
		t.Fatal("graph not partial")
	}
	want := []string{"const v0, 0x0", "add-int/lit v0, v0, 0x1", "goto @1"}
	if diff := cmp.Diff(want, render(res.Method)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestManipulatorRemapsTargetsAndHandlers(t *testing.T) {
	m, err := dex.ParseMethod("LT;", `
.method static f(I)I
    .registers 2
    :try_start
    if-eqz p0, :skip
    nop
    :skip
    div-int v0, p0, p0
    :try_end
    .catch Ljava/lang/ArithmeticException; {:try_start .. :try_end} :h1
    .catchall {:try_start .. :try_end} :h2
    return v0
    :h1
    nop
    const/4 v0, 0x0
    return v0
    :h2
    const/4 v0, 0x1
    return v0
.end method`)
	if err != nil {
		t.Fatal(err)
	}
	x := NewManipulator(m)
	if !x.IsTarget(2) || !x.IsHandlerEntry(4) || x.IsHandlerEntry(2) {
		t.Fatal("targets not indexed")
	}
	x.Remove(1)
	x.Remove(4)
	x.Remove(5)
	x.Remove(6)
	out, err := x.Apply()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"if-eqz v1, @1", "div-int v0, v1, v1", "return v0", "const v0, 0x1", "return v0"}
	if diff := cmp.Diff(want, render(out)); diff != "" {
		t.Errorf("instructions (-want +got):\n%s", diff)
	}
	wantHandlers := []dex.ExceptionHandler{{Start: 0, End: 2, Handler: 3}}
	if diff := cmp.Diff(wantHandlers, out.Handlers); diff != "" {
		t.Errorf("handlers (-want +got):\n%s", diff)
	}
	if len(m.Instructions) != 9 {
		t.Error("source method modified")
	}

	x = NewManipulator(m)
	x.Remove(8)
	if _, err := x.Apply(); err == nil {
		t.Error("removing the final return did not fail")
	}
}
