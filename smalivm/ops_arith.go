package smalivm

import (
	"math"

	dex "github.com/speakeasy-api/simplify"
)

// arithResult is the outcome of a pure arithmetic instruction.
type arithResult struct {
	value   Value
	known   bool
	divZero bool // integer division by zero: ArithmeticException
	mayDiv0 bool // divisor unknown: ArithmeticException possible
}

// resultType returns the type an arithmetic opcode produces.
func resultType(op dex.Opcode) string {
	switch op {
	case dex.OpIntToByte:
		return dex.TypeByte
	case dex.OpIntToChar:
		return dex.TypeChar
	case dex.OpIntToShort:
		return dex.TypeShort
	case dex.OpNegFloat, dex.OpIntToFloat, dex.OpLongToFloat, dex.OpDoubleToFloat,
		dex.OpAddFloat, dex.OpSubFloat, dex.OpMulFloat, dex.OpDivFloat, dex.OpRemFloat:
		return dex.TypeFloat
	case dex.OpNegDouble, dex.OpIntToDouble, dex.OpLongToDouble, dex.OpFloatToDouble,
		dex.OpAddDouble, dex.OpSubDouble, dex.OpMulDouble, dex.OpDivDouble, dex.OpRemDouble:
		return dex.TypeDouble
	}
	if op.IsWide() {
		return dex.TypeLong
	}
	return dex.TypeInt
}

func isIntegerDivision(op dex.Opcode) bool {
	switch op {
	case dex.OpDivInt, dex.OpRemInt, dex.OpDivLong, dex.OpRemLong, dex.OpDivIntLit, dex.OpRemIntLit:
		return true
	}
	return false
}

// isArith reports whether op is a pure unary, binary, literal, conversion or
// compare operation.
func isArith(op dex.Opcode) bool {
	return op >= dex.OpNegInt && op <= dex.OpUshrIntLit ||
		op >= dex.OpCmplFloat && op <= dex.OpCmpLong
}

// evalArith folds an arithmetic instruction with Java fixed-width
// semantics.
func evalArith(in *dex.Instruction, read func(int) Value) arithResult {
	typ := resultType(in.Op)
	unknown := func() arithResult {
		r := arithResult{value: Unknown(typ, ReasonArithmetic)}
		if isIntegerDivision(in.Op) {
			var d Value
			if in.Op == dex.OpDivIntLit || in.Op == dex.OpRemIntLit {
				d = Int(int32(in.Literal))
			} else {
				d = read(in.C)
			}
			if !d.IsKnown() {
				r.mayDiv0 = true
			} else if d.Bits == 0 || (in.Op != dex.OpDivLong && in.Op != dex.OpRemLong && uint32(d.Bits) == 0) {
				r.divZero = true
			}
		}
		return r
	}

	switch in.Op.Format() {
	case dex.FormatAB:
		b := read(in.B)
		if !b.IsPrimitive() {
			return unknown()
		}
		return arithResult{value: unary(in.Op, b), known: true}
	case dex.FormatABLit:
		b := read(in.B)
		lit := int32(in.Literal)
		if in.Op == dex.OpDivIntLit || in.Op == dex.OpRemIntLit {
			if lit == 0 {
				return arithResult{value: Unknown(typ, ReasonArithmetic), divZero: true}
			}
		}
		if !b.IsPrimitive() {
			return unknown()
		}
		return arithResult{value: Int(intBinary(litBase(in.Op), b.Int(), lit, in.Op == dex.OpRsubIntLit)), known: true}
	case dex.FormatABC:
		b, c := read(in.B), read(in.C)
		if !b.IsPrimitive() || !c.IsPrimitive() {
			return unknown()
		}
		switch {
		case in.Op >= dex.OpCmplFloat && in.Op <= dex.OpCmpLong:
			return arithResult{value: Int(compare(in.Op, b, c)), known: true}
		case in.Op >= dex.OpAddInt && in.Op <= dex.OpUshrInt:
			if (in.Op == dex.OpDivInt || in.Op == dex.OpRemInt) && c.Int() == 0 {
				return arithResult{value: Unknown(typ, ReasonArithmetic), divZero: true}
			}
			return arithResult{value: Int(intBinary(in.Op, b.Int(), c.Int(), false)), known: true}
		case in.Op >= dex.OpAddLong && in.Op <= dex.OpUshrLong:
			if (in.Op == dex.OpDivLong || in.Op == dex.OpRemLong) && c.Long() == 0 {
				return arithResult{value: Unknown(typ, ReasonArithmetic), divZero: true}
			}
			return arithResult{value: Long(longBinary(in.Op, b.Long(), c)), known: true}
		case in.Op >= dex.OpAddFloat && in.Op <= dex.OpRemFloat:
			return arithResult{value: Float(floatBinary(in.Op, b.Float(), c.Float())), known: true}
		case in.Op >= dex.OpAddDouble && in.Op <= dex.OpRemDouble:
			return arithResult{value: Double(doubleBinary(in.Op, b.Double(), c.Double())), known: true}
		}
	}
	return unknown()
}

// litBase maps a literal opcode onto the int operation it performs.
func litBase(op dex.Opcode) dex.Opcode {
	switch op {
	case dex.OpAddIntLit, dex.OpRsubIntLit:
		return dex.OpAddInt
	case dex.OpMulIntLit:
		return dex.OpMulInt
	case dex.OpDivIntLit:
		return dex.OpDivInt
	case dex.OpRemIntLit:
		return dex.OpRemInt
	case dex.OpAndIntLit:
		return dex.OpAndInt
	case dex.OpOrIntLit:
		return dex.OpOrInt
	case dex.OpXorIntLit:
		return dex.OpXorInt
	case dex.OpShlIntLit:
		return dex.OpShlInt
	case dex.OpShrIntLit:
		return dex.OpShrInt
	case dex.OpUshrIntLit:
		return dex.OpUshrInt
	}
	return op
}

func intBinary(op dex.Opcode, a, b int32, rsub bool) int32 {
	if rsub {
		return b - a
	}
	switch op {
	case dex.OpAddInt:
		return a + b
	case dex.OpSubInt:
		return a - b
	case dex.OpMulInt:
		return a * b
	case dex.OpDivInt:
		if a == math.MinInt32 && b == -1 {
			return a
		}
		return a / b
	case dex.OpRemInt:
		if b == -1 {
			return 0
		}
		return a % b
	case dex.OpAndInt:
		return a & b
	case dex.OpOrInt:
		return a | b
	case dex.OpXorInt:
		return a ^ b
	case dex.OpShlInt:
		return a << (uint32(b) & 0x1f)
	case dex.OpShrInt:
		return a >> (uint32(b) & 0x1f)
	case dex.OpUshrInt:
		return int32(uint32(a) >> (uint32(b) & 0x1f))
	}
	panic(invariantf("not an int operation: %s", op))
}

// longBinary takes the raw second operand: shift counts are ints.
func longBinary(op dex.Opcode, a int64, bv Value) int64 {
	b := bv.Long()
	switch op {
	case dex.OpAddLong:
		return a + b
	case dex.OpSubLong:
		return a - b
	case dex.OpMulLong:
		return a * b
	case dex.OpDivLong:
		if a == math.MinInt64 && b == -1 {
			return a
		}
		return a / b
	case dex.OpRemLong:
		if b == -1 {
			return 0
		}
		return a % b
	case dex.OpAndLong:
		return a & b
	case dex.OpOrLong:
		return a | b
	case dex.OpXorLong:
		return a ^ b
	case dex.OpShlLong:
		return a << (uint32(bv.Bits) & 0x3f)
	case dex.OpShrLong:
		return a >> (uint32(bv.Bits) & 0x3f)
	case dex.OpUshrLong:
		return int64(uint64(a) >> (uint32(bv.Bits) & 0x3f))
	}
	panic(invariantf("not a long operation: %s", op))
}

func floatBinary(op dex.Opcode, a, b float32) float32 {
	switch op {
	case dex.OpAddFloat:
		return a + b
	case dex.OpSubFloat:
		return a - b
	case dex.OpMulFloat:
		return a * b
	case dex.OpDivFloat:
		return a / b
	case dex.OpRemFloat:
		return float32(math.Mod(float64(a), float64(b)))
	}
	panic(invariantf("not a float operation: %s", op))
}

func doubleBinary(op dex.Opcode, a, b float64) float64 {
	switch op {
	case dex.OpAddDouble:
		return a + b
	case dex.OpSubDouble:
		return a - b
	case dex.OpMulDouble:
		return a * b
	case dex.OpDivDouble:
		return a / b
	case dex.OpRemDouble:
		return math.Mod(a, b)
	}
	panic(invariantf("not a double operation: %s", op))
}

func compare(op dex.Opcode, a, b Value) int32 {
	switch op {
	case dex.OpCmpLong:
		return sign3(a.Long() < b.Long(), a.Long() > b.Long())
	case dex.OpCmplFloat, dex.OpCmpgFloat:
		x, y := a.Float(), b.Float()
		if x != x || y != y {
			if op == dex.OpCmplFloat {
				return -1
			}
			return 1
		}
		return sign3(x < y, x > y)
	default:
		x, y := a.Double(), b.Double()
		if math.IsNaN(x) || math.IsNaN(y) {
			if op == dex.OpCmplDouble {
				return -1
			}
			return 1
		}
		return sign3(x < y, x > y)
	}
}

func sign3(less, greater bool) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func unary(op dex.Opcode, v Value) Value {
	switch op {
	case dex.OpNegInt:
		return Int(-v.Int())
	case dex.OpNotInt:
		return Int(^v.Int())
	case dex.OpNegLong:
		return Long(-v.Long())
	case dex.OpNotLong:
		return Long(^v.Long())
	case dex.OpNegFloat:
		return Float(-v.Float())
	case dex.OpNegDouble:
		return Double(-v.Double())
	case dex.OpIntToLong:
		return Long(int64(v.Int()))
	case dex.OpIntToFloat:
		return Float(float32(v.Int()))
	case dex.OpIntToDouble:
		return Double(float64(v.Int()))
	case dex.OpLongToInt:
		return Int(int32(v.Long()))
	case dex.OpLongToFloat:
		return Float(float32(v.Long()))
	case dex.OpLongToDouble:
		return Double(float64(v.Long()))
	case dex.OpFloatToInt:
		return Int(int32(saturate(float64(v.Float()), math.MinInt32, math.MaxInt32)))
	case dex.OpFloatToLong:
		return Long(saturate(float64(v.Float()), math.MinInt64, math.MaxInt64))
	case dex.OpFloatToDouble:
		return Double(float64(v.Float()))
	case dex.OpDoubleToInt:
		return Int(int32(saturate(v.Double(), math.MinInt32, math.MaxInt32)))
	case dex.OpDoubleToLong:
		return Long(saturate(v.Double(), math.MinInt64, math.MaxInt64))
	case dex.OpDoubleToFloat:
		return Float(float32(v.Double()))
	case dex.OpIntToByte:
		return Primitive(dex.TypeByte, int64(int8(v.Int())))
	case dex.OpIntToChar:
		return Primitive(dex.TypeChar, int64(uint16(v.Int())))
	case dex.OpIntToShort:
		return Primitive(dex.TypeShort, int64(int16(v.Int())))
	}
	panic(invariantf("not a unary operation: %s", op))
}

// saturate converts f to an integer in [lo, hi] the way the JVM does:
// NaN becomes 0 and out-of-range values clamp.
func saturate(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return int64(f)
}

// FoldInstruction evaluates a side-effect-free instruction (const, move or
// arithmetic) over the operand values supplied by read. It reports false if
// an operand is unknown, the instruction could throw, or the opcode is not
// foldable. Strings and classes are not folded.
func FoldInstruction(in *dex.Instruction, read func(int) Value) (Value, bool) {
	switch in.Op {
	case dex.OpConst:
		return Int(int32(in.Literal)), true
	case dex.OpConstWide:
		return Long(in.Literal), true
	case dex.OpMove, dex.OpMoveWide:
		v := read(in.B)
		return v, v.IsPrimitive()
	}
	if !isArith(in.Op) {
		return Value{}, false
	}
	r := evalArith(in, read)
	if !r.known || r.divZero || r.mayDiv0 {
		return Value{}, false
	}
	return r.value, true
}
