package dex

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one decoded instruction. Addresses are instruction indices
// within the owning method.
type Instruction struct {
	Op Opcode

	// A is the first register operand (usually the destination), B and C
	// follow it. Two-address forms are normalized to A, A, B.
	A, B, C int

	// Literal holds const and /lit operands. Wide and floating-point
	// constants keep their raw bit pattern.
	Literal int64

	// Target is the branch target of goto and if-* instructions.
	Target int

	// Type is the type descriptor operand (new-instance, check-cast, ...).
	Type string

	// Ref is a field or method reference: LClass;->name:T or
	// LClass;->name(params)ret.
	Ref string

	// Str is the const-string operand, or the raw operand text of opcodes
	// the interpreter does not model.
	Str string

	// Args is the register list of invoke and filled-new-array.
	Args []int

	// Keys and Targets describe switch payloads; Keys[i] jumps to Targets[i].
	Keys    []int32
	Targets []int

	// Data holds fill-array-data elements; Width is the element width in bytes.
	Data  []int64
	Width int
}

// Clone returns a deep copy of the instruction.
func (in Instruction) Clone() Instruction {
	out := in
	if in.Args != nil {
		out.Args = append([]int(nil), in.Args...)
	}
	if in.Keys != nil {
		out.Keys = append([]int32(nil), in.Keys...)
	}
	if in.Targets != nil {
		out.Targets = append([]int(nil), in.Targets...)
	}
	if in.Data != nil {
		out.Data = append([]int64(nil), in.Data...)
	}
	return out
}

// Uses returns the registers read by the instruction.
func (in *Instruction) Uses() []int {
	switch in.Op.Format() {
	case FormatNone, FormatTarget:
		return nil
	case FormatA:
		switch {
		case in.Op.IsReturn(), in.Op == OpMonitorEnter, in.Op == OpMonitorExit, in.Op == OpThrow:
			return []int{in.A}
		}
		return nil
	case FormatAB:
		return []int{in.B}
	case FormatABC:
		if in.Op >= OpAput && in.Op <= OpAputShort {
			return []int{in.A, in.B, in.C}
		}
		return []int{in.B, in.C}
	case FormatABLit, FormatABType:
		return []int{in.B}
	case FormatALit, FormatAString:
		return nil
	case FormatAType:
		if in.Op == OpCheckCast {
			return []int{in.A}
		}
		return nil
	case FormatABTarget:
		return []int{in.A, in.B}
	case FormatATarget, FormatASwitch, FormatAData:
		return []int{in.A}
	case FormatAField:
		if in.Op >= OpSput && in.Op <= OpSputShort {
			return []int{in.A}
		}
		return nil
	case FormatABField:
		if in.Op >= OpIput && in.Op <= OpIputShort {
			return []int{in.A, in.B}
		}
		return []int{in.B}
	case FormatInvoke, FormatArgsType:
		return append([]int(nil), in.Args...)
	case FormatRaw:
		if in.Op.IsInvoke() {
			return append([]int(nil), in.Args...)
		}
		return nil
	}
	return nil
}

// Defs returns the registers written by the instruction.
func (in *Instruction) Defs() []int {
	if in.Op.WritesRegister() {
		return []int{in.A}
	}
	return nil
}

// String renders the instruction with numeric branch targets (@N). Use
// pkg/smalifmt for label-based output.
func (in *Instruction) String() string {
	return in.Render(func(addr int) string { return "@" + strconv.Itoa(addr) }, nil)
}

// Render formats the instruction. label names branch targets; reg names
// registers and defaults to vN.
func (in *Instruction) Render(label func(int) string, reg func(int) string) string {
	if reg == nil {
		reg = func(r int) string { return "v" + strconv.Itoa(r) }
	}
	op := in.Op.String()
	switch in.Op.Format() {
	case FormatNone:
		return op
	case FormatA:
		return fmt.Sprintf("%s %s", op, reg(in.A))
	case FormatAB:
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), reg(in.B))
	case FormatABC:
		return fmt.Sprintf("%s %s, %s, %s", op, reg(in.A), reg(in.B), reg(in.C))
	case FormatABLit:
		return fmt.Sprintf("%s %s, %s, %s", op, reg(in.A), reg(in.B), FormatLiteral(in.Literal))
	case FormatALit:
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), FormatLiteral(in.Literal))
	case FormatAString:
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), strconv.Quote(in.Str))
	case FormatAType:
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), in.Type)
	case FormatABType:
		return fmt.Sprintf("%s %s, %s, %s", op, reg(in.A), reg(in.B), in.Type)
	case FormatABTarget:
		return fmt.Sprintf("%s %s, %s, %s", op, reg(in.A), reg(in.B), label(in.Target))
	case FormatATarget:
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), label(in.Target))
	case FormatTarget:
		return fmt.Sprintf("%s %s", op, label(in.Target))
	case FormatAField:
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), in.Ref)
	case FormatABField:
		return fmt.Sprintf("%s %s, %s, %s", op, reg(in.A), reg(in.B), in.Ref)
	case FormatInvoke:
		return fmt.Sprintf("%s %s, %s", op, renderArgs(in.Args, reg), in.Ref)
	case FormatArgsType:
		return fmt.Sprintf("%s %s, %s", op, renderArgs(in.Args, reg), in.Type)
	case FormatASwitch:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s", op, reg(in.A))
		for i, k := range in.Keys {
			fmt.Fprintf(&sb, ", %d -> %s", k, label(in.Targets[i]))
		}
		return sb.String()
	case FormatAData:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s, %d", op, reg(in.A), in.Width)
		for _, d := range in.Data {
			sb.WriteString(", ")
			sb.WriteString(FormatLiteral(d))
		}
		return sb.String()
	case FormatRaw:
		if in.Op.IsInvoke() {
			return fmt.Sprintf("%s %s, %s", op, renderArgs(in.Args, reg), in.Str)
		}
		return fmt.Sprintf("%s %s, %s", op, reg(in.A), in.Str)
	}
	return op
}

func renderArgs(args []int, reg func(int) string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = reg(a)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatLiteral renders an integer literal the way the assembler reads it.
func FormatLiteral(v int64) string {
	if v < 0 {
		return "-0x" + strconv.FormatUint(uint64(-v), 16)
	}
	return "0x" + strconv.FormatInt(v, 16)
}
