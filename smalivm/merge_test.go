package smalivm

import (
	"testing"

	dex "github.com/speakeasy-api/simplify"
)

func TestNodeCollapsesPastContextLimit(t *testing.T) {
	opts := withOptions(func(o *Options) { o.MaxContextsPerNode = 4 })
	g := execute(t, countLoop, "LT;->count(I)I", nil, opts)
	if g.IsPartial() {
		t.Fatalf("graph is partial: %s", g.Budget)
	}
	ctx := g.NodesAt(1)
	if len(ctx) != 1 {
		t.Fatalf("contexts at loop head = %d, want 1", len(ctx))
	}
	if v := ctx[0].Register(0); !v.IsUnknown() || v.Type != dex.TypeInt {
		t.Errorf("counter at loop head = %s, want unknown int", v)
	}
	if g.IsPossiblyNonTerminating(1) {
		t.Error("collapsed loop head marked possibly non-terminating")
	}
	v, _ := g.ReturnConsensus()
	if !v.IsUnknown() {
		t.Errorf("return = %s, want unknown", v)
	}
}

func TestDistinctContextsAreKept(t *testing.T) {
	g := execute(t, countLoop, "LT;->count(I)I", &InitialState{Registers: map[int]Value{2: Int(3)}}, quiet())
	if got := len(g.NodesAt(1)); got != 4 {
		t.Errorf("contexts at loop head = %d, want 4", got)
	}
	wantReturn(t, g, Int(3))
}

func ctxOf(regs ...Value) *Context {
	c := &Context{Registers: registerFileOf(regs), Heap: NewHeap()}
	return c.seal()
}

func TestContextCovers(t *testing.T) {
	unknown := Unknown(dex.TypeInt, ReasonMerged)
	tests := []struct {
		name string
		a, b *Context
		want bool
	}{
		{"identical", ctxOf(Int(1), Int(2)), ctxOf(Int(1), Int(2)), true},
		{"unknown covers known", ctxOf(unknown, Int(2)), ctxOf(Int(7), Int(2)), true},
		{"known does not cover unknown", ctxOf(Int(7), Int(2)), ctxOf(unknown, Int(2)), false},
		{"different constants", ctxOf(Int(1)), ctxOf(Int(2)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.covers(tt.b); got != tt.want {
				t.Errorf("covers = %v, want %v", got, tt.want)
			}
		})
	}

	a, b := ctxOf(Int(1)), ctxOf(Int(1))
	b.Address = 3
	if a.covers(b) {
		t.Error("contexts at different addresses cover each other")
	}

	a, b = ctxOf(Int(1)), ctxOf(Int(1))
	res := Int(4)
	b.Result = &res
	if a.covers(b) || b.covers(a) {
		t.Error("pending result ignored")
	}
}

func TestJoinContexts(t *testing.T) {
	j := joinContexts([]*Context{ctxOf(Int(1), Int(2)), ctxOf(Int(1), Int(3))})
	if !j.Register(0).Same(Int(1)) {
		t.Errorf("agreeing register = %s, want 1", j.Register(0))
	}
	if v := j.Register(1); !v.IsUnknown() || v.Reason != ReasonMerged {
		t.Errorf("differing register = %s, want merged unknown", v)
	}
	for _, c := range []*Context{ctxOf(Int(1), Int(2)), ctxOf(Int(1), Int(3))} {
		if !j.covers(c) {
			t.Errorf("join does not cover %s", c)
		}
	}
}
