package smalivm

import (
	"math"
	"testing"

	dex "github.com/speakeasy-api/simplify"
)

func TestFoldInstruction(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		insn dex.Instruction
		regs map[int]Value
		want Value
		ok   bool
	}{
		{"int overflow wraps", dex.Instruction{Op: dex.OpAddInt, B: 1, C: 2},
			map[int]Value{1: Int(math.MaxInt32), 2: Int(1)}, Int(math.MinInt32), true},
		{"long multiply wraps", dex.Instruction{Op: dex.OpMulLong, B: 1, C: 2},
			map[int]Value{1: Long(math.MaxInt64), 2: Long(2)}, Long(-2), true},
		{"int shift masks count", dex.Instruction{Op: dex.OpShlInt, B: 1, C: 2},
			map[int]Value{1: Int(1), 2: Int(33)}, Int(2), true},
		{"unsigned shift", dex.Instruction{Op: dex.OpUshrInt, B: 1, C: 2},
			map[int]Value{1: Int(-1), 2: Int(28)}, Int(15), true},
		{"long shift masks count", dex.Instruction{Op: dex.OpShrLong, B: 1, C: 2},
			map[int]Value{1: Long(-8), 2: Int(65)}, Long(-4), true},
		{"min int divided by minus one", dex.Instruction{Op: dex.OpDivInt, B: 1, C: 2},
			map[int]Value{1: Int(math.MinInt32), 2: Int(-1)}, Int(math.MinInt32), true},
		{"remainder keeps dividend sign", dex.Instruction{Op: dex.OpRemInt, B: 1, C: 2},
			map[int]Value{1: Int(-7), 2: Int(2)}, Int(-1), true},
		{"division by zero is not folded", dex.Instruction{Op: dex.OpDivInt, B: 1, C: 2},
			map[int]Value{1: Int(7), 2: Int(0)}, Value{}, false},
		{"literal division by zero", dex.Instruction{Op: dex.OpDivIntLit, B: 1, Literal: 0},
			map[int]Value{1: Int(7)}, Value{}, false},
		{"reverse subtract", dex.Instruction{Op: dex.OpRsubIntLit, B: 1, Literal: 10},
			map[int]Value{1: Int(3)}, Int(7), true},
		{"NaN to int is zero", dex.Instruction{Op: dex.OpFloatToInt, B: 1},
			map[int]Value{1: Float(nan)}, Int(0), true},
		{"large float saturates", dex.Instruction{Op: dex.OpFloatToInt, B: 1},
			map[int]Value{1: Float(1e20)}, Int(math.MaxInt32), true},
		{"negative double saturates", dex.Instruction{Op: dex.OpDoubleToLong, B: 1},
			map[int]Value{1: Double(math.Inf(-1))}, Long(math.MinInt64), true},
		{"cmpl NaN is minus one", dex.Instruction{Op: dex.OpCmplFloat, B: 1, C: 2},
			map[int]Value{1: Float(nan), 2: Float(1)}, Int(-1), true},
		{"cmpg NaN is one", dex.Instruction{Op: dex.OpCmpgFloat, B: 1, C: 2},
			map[int]Value{1: Float(nan), 2: Float(1)}, Int(1), true},
		{"cmp-long", dex.Instruction{Op: dex.OpCmpLong, B: 1, C: 2},
			map[int]Value{1: Long(3), 2: Long(9)}, Int(-1), true},
		{"int to byte truncates", dex.Instruction{Op: dex.OpIntToByte, B: 1},
			map[int]Value{1: Int(200)}, Primitive(dex.TypeByte, -56), true},
		{"int to char is unsigned", dex.Instruction{Op: dex.OpIntToChar, B: 1},
			map[int]Value{1: Int(-1)}, Char(0xffff), true},
		{"double arithmetic", dex.Instruction{Op: dex.OpMulDouble, B: 1, C: 2},
			map[int]Value{1: Double(1.5), 2: Double(4)}, Double(6), true},
		{"const", dex.Instruction{Op: dex.OpConst, Literal: -3}, nil, Int(-3), true},
		{"unknown operand", dex.Instruction{Op: dex.OpAddInt, B: 1, C: 2},
			map[int]Value{1: Unknown(dex.TypeInt, ReasonParameter), 2: Int(1)}, Value{}, false},
		{"references are not folded", dex.Instruction{Op: dex.OpConstString, Str: "x"}, nil, Value{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			read := func(r int) Value {
				if v, ok := tt.regs[r]; ok {
					return v
				}
				return Unknown("", ReasonUninitialized)
			}
			got, ok := FoldInstruction(&tt.insn, read)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (value %s)", ok, tt.ok, got)
			}
			if ok && !got.Same(tt.want) {
				t.Errorf("FoldInstruction = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestArithmeticEdges(t *testing.T) {
	body := `
.method static div(II)I
    .registers 3
    div-int v0, p0, p1
    return v0
.end method`
	g := execute(t, body, "LT;->div(II)I", &InitialState{Registers: map[int]Value{1: Int(1), 2: Int(0)}}, quiet())
	if g.WasAddressReached(1) {
		t.Error("return reached after division by zero")
	}
	if len(g.Terminals) != 1 || g.Terminals[0].Kind != TerminalThrow {
		t.Fatalf("terminals = %+v, want one throw", g.Terminals)
	}
	if got := g.Terminals[0].Value.Type; got != dex.ExcArithmetic {
		t.Errorf("thrown type = %s", got)
	}

	g = execute(t, body, "LT;->div(II)I", &InitialState{Registers: map[int]Value{1: Int(1)}}, quiet())
	kinds := g.EdgeKinds(0)
	if !kinds[EdgeFallthrough] || !kinds[EdgeException] {
		t.Errorf("edge kinds with unknown divisor = %v, want fallthrough and exception", kinds)
	}
}
