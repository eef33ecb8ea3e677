package dex

import "fmt"

// Opcode identifies a canonical instruction. Format variants of the same
// operation (/2addr, /lit8, /from16, /range, /jumbo, ...) share one Opcode.
type Opcode int

const (
	OpNop Opcode = iota
	OpMove
	OpMoveWide
	OpMoveObject
	OpMoveResult
	OpMoveResultWide
	OpMoveResultObject
	OpMoveException
	OpReturnVoid
	OpReturn
	OpReturnWide
	OpReturnObject
	OpConst
	OpConstWide
	OpConstString
	OpConstClass
	OpMonitorEnter
	OpMonitorExit
	OpCheckCast
	OpInstanceOf
	OpArrayLength
	OpNewInstance
	OpNewArray
	OpFilledNewArray
	OpFillArrayData
	OpThrow
	OpGoto
	OpPackedSwitch
	OpSparseSwitch
	OpCmplFloat
	OpCmpgFloat
	OpCmplDouble
	OpCmpgDouble
	OpCmpLong
	OpIfEq
	OpIfNe
	OpIfLt
	OpIfGe
	OpIfGt
	OpIfLe
	OpIfEqz
	OpIfNez
	OpIfLtz
	OpIfGez
	OpIfGtz
	OpIfLez
	OpAget
	OpAgetWide
	OpAgetObject
	OpAgetBoolean
	OpAgetByte
	OpAgetChar
	OpAgetShort
	OpAput
	OpAputWide
	OpAputObject
	OpAputBoolean
	OpAputByte
	OpAputChar
	OpAputShort
	OpIget
	OpIgetWide
	OpIgetObject
	OpIgetBoolean
	OpIgetByte
	OpIgetChar
	OpIgetShort
	OpIput
	OpIputWide
	OpIputObject
	OpIputBoolean
	OpIputByte
	OpIputChar
	OpIputShort
	OpSget
	OpSgetWide
	OpSgetObject
	OpSgetBoolean
	OpSgetByte
	OpSgetChar
	OpSgetShort
	OpSput
	OpSputWide
	OpSputObject
	OpSputBoolean
	OpSputByte
	OpSputChar
	OpSputShort
	OpInvokeVirtual
	OpInvokeSuper
	OpInvokeDirect
	OpInvokeStatic
	OpInvokeInterface
	OpNegInt
	OpNotInt
	OpNegLong
	OpNotLong
	OpNegFloat
	OpNegDouble
	OpIntToLong
	OpIntToFloat
	OpIntToDouble
	OpLongToInt
	OpLongToFloat
	OpLongToDouble
	OpFloatToInt
	OpFloatToLong
	OpFloatToDouble
	OpDoubleToInt
	OpDoubleToLong
	OpDoubleToFloat
	OpIntToByte
	OpIntToChar
	OpIntToShort
	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpRemInt
	OpAndInt
	OpOrInt
	OpXorInt
	OpShlInt
	OpShrInt
	OpUshrInt
	OpAddLong
	OpSubLong
	OpMulLong
	OpDivLong
	OpRemLong
	OpAndLong
	OpOrLong
	OpXorLong
	OpShlLong
	OpShrLong
	OpUshrLong
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpRemFloat
	OpAddDouble
	OpSubDouble
	OpMulDouble
	OpDivDouble
	OpRemDouble
	OpAddIntLit
	OpRsubIntLit
	OpMulIntLit
	OpDivIntLit
	OpRemIntLit
	OpAndIntLit
	OpOrIntLit
	OpXorIntLit
	OpShlIntLit
	OpShrIntLit
	OpUshrIntLit
	OpInvokePolymorphic
	OpInvokeCustom
	OpConstMethodHandle
	OpConstMethodType

	opcodeCount
)

// Format describes the operand layout of an opcode.
type Format uint8

const (
	FormatNone       Format = iota // nop, return-void
	FormatA                        // vA
	FormatAB                       // vA, vB
	FormatABC                      // vA, vB, vC
	FormatABLit                    // vA, vB, #lit
	FormatALit                     // vA, #lit
	FormatAString                  // vA, "string"
	FormatAType                    // vA, Type
	FormatABType                   // vA, vB, Type
	FormatABTarget                 // vA, vB, :label
	FormatATarget                  // vA, :label
	FormatTarget                   // :label
	FormatAField                   // vA, LC;->f:T
	FormatABField                  // vA, vB, LC;->f:T
	FormatInvoke                   // {args}, LC;->m()V
	FormatArgsType                 // {args}, Type
	FormatASwitch                  // vA, :payload
	FormatAData                    // vA, :payload
	FormatRaw                      // vA, <opaque text> or {args}, <opaque text>
)

type flag uint16

const (
	flagBranch      flag = 1 << iota // conditional or unconditional transfer
	flagNoFallthrough                // control never reaches the next instruction
	flagCanThrow                     // instruction may raise an exception
	flagSetsResult                   // instruction fills the result register
	flagInvoke
	flagReturn
	flagWritesA // vA is a destination
	flagPure    // no side effect beyond writing vA (may still throw)
	flagWide    // destination value is 64-bit
	flagUnsupported
)

type opInfo struct {
	name   string
	format Format
	flags  flag
}

var opcodeTable = [opcodeCount]opInfo{
	OpNop:              {"nop", FormatNone, flagPure},
	OpMove:             {"move", FormatAB, flagWritesA | flagPure},
	OpMoveWide:         {"move-wide", FormatAB, flagWritesA | flagPure | flagWide},
	OpMoveObject:       {"move-object", FormatAB, flagWritesA | flagPure},
	OpMoveResult:       {"move-result", FormatA, flagWritesA | flagPure},
	OpMoveResultWide:   {"move-result-wide", FormatA, flagWritesA | flagPure | flagWide},
	OpMoveResultObject: {"move-result-object", FormatA, flagWritesA | flagPure},
	OpMoveException:    {"move-exception", FormatA, flagWritesA},
	OpReturnVoid:       {"return-void", FormatNone, flagNoFallthrough | flagReturn},
	OpReturn:           {"return", FormatA, flagNoFallthrough | flagReturn},
	OpReturnWide:       {"return-wide", FormatA, flagNoFallthrough | flagReturn},
	OpReturnObject:     {"return-object", FormatA, flagNoFallthrough | flagReturn},
	OpConst:            {"const", FormatALit, flagWritesA | flagPure},
	OpConstWide:        {"const-wide", FormatALit, flagWritesA | flagPure | flagWide},
	OpConstString:      {"const-string", FormatAString, flagWritesA | flagPure},
	OpConstClass:       {"const-class", FormatAType, flagWritesA | flagPure},
	OpMonitorEnter:     {"monitor-enter", FormatA, flagCanThrow},
	OpMonitorExit:      {"monitor-exit", FormatA, flagCanThrow},
	OpCheckCast:        {"check-cast", FormatAType, flagCanThrow},
	OpInstanceOf:       {"instance-of", FormatABType, flagWritesA | flagPure},
	OpArrayLength:      {"array-length", FormatAB, flagWritesA | flagPure | flagCanThrow},
	OpNewInstance:      {"new-instance", FormatAType, flagWritesA | flagPure | flagCanThrow},
	OpNewArray:         {"new-array", FormatABType, flagWritesA | flagPure | flagCanThrow},
	OpFilledNewArray:   {"filled-new-array", FormatArgsType, flagSetsResult | flagCanThrow},
	OpFillArrayData:    {"fill-array-data", FormatAData, flagCanThrow},
	OpThrow:            {"throw", FormatA, flagNoFallthrough | flagCanThrow},
	OpGoto:             {"goto", FormatTarget, flagBranch | flagNoFallthrough},
	OpPackedSwitch:     {"packed-switch", FormatASwitch, flagBranch},
	OpSparseSwitch:     {"sparse-switch", FormatASwitch, flagBranch},
	OpCmplFloat:        {"cmpl-float", FormatABC, flagWritesA | flagPure},
	OpCmpgFloat:        {"cmpg-float", FormatABC, flagWritesA | flagPure},
	OpCmplDouble:       {"cmpl-double", FormatABC, flagWritesA | flagPure},
	OpCmpgDouble:       {"cmpg-double", FormatABC, flagWritesA | flagPure},
	OpCmpLong:          {"cmp-long", FormatABC, flagWritesA | flagPure},
	OpIfEq:             {"if-eq", FormatABTarget, flagBranch},
	OpIfNe:             {"if-ne", FormatABTarget, flagBranch},
	OpIfLt:             {"if-lt", FormatABTarget, flagBranch},
	OpIfGe:             {"if-ge", FormatABTarget, flagBranch},
	OpIfGt:             {"if-gt", FormatABTarget, flagBranch},
	OpIfLe:             {"if-le", FormatABTarget, flagBranch},
	OpIfEqz:            {"if-eqz", FormatATarget, flagBranch},
	OpIfNez:            {"if-nez", FormatATarget, flagBranch},
	OpIfLtz:            {"if-ltz", FormatATarget, flagBranch},
	OpIfGez:            {"if-gez", FormatATarget, flagBranch},
	OpIfGtz:            {"if-gtz", FormatATarget, flagBranch},
	OpIfLez:            {"if-lez", FormatATarget, flagBranch},
	OpAget:             {"aget", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAgetWide:         {"aget-wide", FormatABC, flagWritesA | flagPure | flagCanThrow | flagWide},
	OpAgetObject:       {"aget-object", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAgetBoolean:      {"aget-boolean", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAgetByte:         {"aget-byte", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAgetChar:         {"aget-char", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAgetShort:        {"aget-short", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAput:             {"aput", FormatABC, flagCanThrow},
	OpAputWide:         {"aput-wide", FormatABC, flagCanThrow},
	OpAputObject:       {"aput-object", FormatABC, flagCanThrow},
	OpAputBoolean:      {"aput-boolean", FormatABC, flagCanThrow},
	OpAputByte:         {"aput-byte", FormatABC, flagCanThrow},
	OpAputChar:         {"aput-char", FormatABC, flagCanThrow},
	OpAputShort:        {"aput-short", FormatABC, flagCanThrow},
	OpIget:             {"iget", FormatABField, flagWritesA | flagPure | flagCanThrow},
	OpIgetWide:         {"iget-wide", FormatABField, flagWritesA | flagPure | flagCanThrow | flagWide},
	OpIgetObject:       {"iget-object", FormatABField, flagWritesA | flagPure | flagCanThrow},
	OpIgetBoolean:      {"iget-boolean", FormatABField, flagWritesA | flagPure | flagCanThrow},
	OpIgetByte:         {"iget-byte", FormatABField, flagWritesA | flagPure | flagCanThrow},
	OpIgetChar:         {"iget-char", FormatABField, flagWritesA | flagPure | flagCanThrow},
	OpIgetShort:        {"iget-short", FormatABField, flagWritesA | flagPure | flagCanThrow},
	OpIput:             {"iput", FormatABField, flagCanThrow},
	OpIputWide:         {"iput-wide", FormatABField, flagCanThrow},
	OpIputObject:       {"iput-object", FormatABField, flagCanThrow},
	OpIputBoolean:      {"iput-boolean", FormatABField, flagCanThrow},
	OpIputByte:         {"iput-byte", FormatABField, flagCanThrow},
	OpIputChar:         {"iput-char", FormatABField, flagCanThrow},
	OpIputShort:        {"iput-short", FormatABField, flagCanThrow},
	OpSget:             {"sget", FormatAField, flagWritesA | flagCanThrow},
	OpSgetWide:         {"sget-wide", FormatAField, flagWritesA | flagCanThrow | flagWide},
	OpSgetObject:       {"sget-object", FormatAField, flagWritesA | flagCanThrow},
	OpSgetBoolean:      {"sget-boolean", FormatAField, flagWritesA | flagCanThrow},
	OpSgetByte:         {"sget-byte", FormatAField, flagWritesA | flagCanThrow},
	OpSgetChar:         {"sget-char", FormatAField, flagWritesA | flagCanThrow},
	OpSgetShort:        {"sget-short", FormatAField, flagWritesA | flagCanThrow},
	OpSput:             {"sput", FormatAField, flagCanThrow},
	OpSputWide:         {"sput-wide", FormatAField, flagCanThrow},
	OpSputObject:       {"sput-object", FormatAField, flagCanThrow},
	OpSputBoolean:      {"sput-boolean", FormatAField, flagCanThrow},
	OpSputByte:         {"sput-byte", FormatAField, flagCanThrow},
	OpSputChar:         {"sput-char", FormatAField, flagCanThrow},
	OpSputShort:        {"sput-short", FormatAField, flagCanThrow},
	OpInvokeVirtual:    {"invoke-virtual", FormatInvoke, flagInvoke | flagSetsResult | flagCanThrow},
	OpInvokeSuper:      {"invoke-super", FormatInvoke, flagInvoke | flagSetsResult | flagCanThrow},
	OpInvokeDirect:     {"invoke-direct", FormatInvoke, flagInvoke | flagSetsResult | flagCanThrow},
	OpInvokeStatic:     {"invoke-static", FormatInvoke, flagInvoke | flagSetsResult | flagCanThrow},
	OpInvokeInterface:  {"invoke-interface", FormatInvoke, flagInvoke | flagSetsResult | flagCanThrow},
	OpNegInt:           {"neg-int", FormatAB, flagWritesA | flagPure},
	OpNotInt:           {"not-int", FormatAB, flagWritesA | flagPure},
	OpNegLong:          {"neg-long", FormatAB, flagWritesA | flagPure | flagWide},
	OpNotLong:          {"not-long", FormatAB, flagWritesA | flagPure | flagWide},
	OpNegFloat:         {"neg-float", FormatAB, flagWritesA | flagPure},
	OpNegDouble:        {"neg-double", FormatAB, flagWritesA | flagPure | flagWide},
	OpIntToLong:        {"int-to-long", FormatAB, flagWritesA | flagPure | flagWide},
	OpIntToFloat:       {"int-to-float", FormatAB, flagWritesA | flagPure},
	OpIntToDouble:      {"int-to-double", FormatAB, flagWritesA | flagPure | flagWide},
	OpLongToInt:        {"long-to-int", FormatAB, flagWritesA | flagPure},
	OpLongToFloat:      {"long-to-float", FormatAB, flagWritesA | flagPure},
	OpLongToDouble:     {"long-to-double", FormatAB, flagWritesA | flagPure | flagWide},
	OpFloatToInt:       {"float-to-int", FormatAB, flagWritesA | flagPure},
	OpFloatToLong:      {"float-to-long", FormatAB, flagWritesA | flagPure | flagWide},
	OpFloatToDouble:    {"float-to-double", FormatAB, flagWritesA | flagPure | flagWide},
	OpDoubleToInt:      {"double-to-int", FormatAB, flagWritesA | flagPure},
	OpDoubleToLong:     {"double-to-long", FormatAB, flagWritesA | flagPure | flagWide},
	OpDoubleToFloat:    {"double-to-float", FormatAB, flagWritesA | flagPure},
	OpIntToByte:        {"int-to-byte", FormatAB, flagWritesA | flagPure},
	OpIntToChar:        {"int-to-char", FormatAB, flagWritesA | flagPure},
	OpIntToShort:       {"int-to-short", FormatAB, flagWritesA | flagPure},
	OpAddInt:           {"add-int", FormatABC, flagWritesA | flagPure},
	OpSubInt:           {"sub-int", FormatABC, flagWritesA | flagPure},
	OpMulInt:           {"mul-int", FormatABC, flagWritesA | flagPure},
	OpDivInt:           {"div-int", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpRemInt:           {"rem-int", FormatABC, flagWritesA | flagPure | flagCanThrow},
	OpAndInt:           {"and-int", FormatABC, flagWritesA | flagPure},
	OpOrInt:            {"or-int", FormatABC, flagWritesA | flagPure},
	OpXorInt:           {"xor-int", FormatABC, flagWritesA | flagPure},
	OpShlInt:           {"shl-int", FormatABC, flagWritesA | flagPure},
	OpShrInt:           {"shr-int", FormatABC, flagWritesA | flagPure},
	OpUshrInt:          {"ushr-int", FormatABC, flagWritesA | flagPure},
	OpAddLong:          {"add-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpSubLong:          {"sub-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpMulLong:          {"mul-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpDivLong:          {"div-long", FormatABC, flagWritesA | flagPure | flagCanThrow | flagWide},
	OpRemLong:          {"rem-long", FormatABC, flagWritesA | flagPure | flagCanThrow | flagWide},
	OpAndLong:          {"and-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpOrLong:           {"or-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpXorLong:          {"xor-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpShlLong:          {"shl-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpShrLong:          {"shr-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpUshrLong:         {"ushr-long", FormatABC, flagWritesA | flagPure | flagWide},
	OpAddFloat:         {"add-float", FormatABC, flagWritesA | flagPure},
	OpSubFloat:         {"sub-float", FormatABC, flagWritesA | flagPure},
	OpMulFloat:         {"mul-float", FormatABC, flagWritesA | flagPure},
	OpDivFloat:         {"div-float", FormatABC, flagWritesA | flagPure},
	OpRemFloat:         {"rem-float", FormatABC, flagWritesA | flagPure},
	OpAddDouble:        {"add-double", FormatABC, flagWritesA | flagPure | flagWide},
	OpSubDouble:        {"sub-double", FormatABC, flagWritesA | flagPure | flagWide},
	OpMulDouble:        {"mul-double", FormatABC, flagWritesA | flagPure | flagWide},
	OpDivDouble:        {"div-double", FormatABC, flagWritesA | flagPure | flagWide},
	OpRemDouble:        {"rem-double", FormatABC, flagWritesA | flagPure | flagWide},
	OpAddIntLit:        {"add-int/lit", FormatABLit, flagWritesA | flagPure},
	OpRsubIntLit:       {"rsub-int/lit", FormatABLit, flagWritesA | flagPure},
	OpMulIntLit:        {"mul-int/lit", FormatABLit, flagWritesA | flagPure},
	OpDivIntLit:        {"div-int/lit", FormatABLit, flagWritesA | flagPure | flagCanThrow},
	OpRemIntLit:        {"rem-int/lit", FormatABLit, flagWritesA | flagPure | flagCanThrow},
	OpAndIntLit:        {"and-int/lit", FormatABLit, flagWritesA | flagPure},
	OpOrIntLit:         {"or-int/lit", FormatABLit, flagWritesA | flagPure},
	OpXorIntLit:        {"xor-int/lit", FormatABLit, flagWritesA | flagPure},
	OpShlIntLit:        {"shl-int/lit", FormatABLit, flagWritesA | flagPure},
	OpShrIntLit:        {"shr-int/lit", FormatABLit, flagWritesA | flagPure},
	OpUshrIntLit:       {"ushr-int/lit", FormatABLit, flagWritesA | flagPure},

	OpInvokePolymorphic: {"invoke-polymorphic", FormatRaw, flagInvoke | flagSetsResult | flagCanThrow | flagUnsupported},
	OpInvokeCustom:      {"invoke-custom", FormatRaw, flagInvoke | flagSetsResult | flagCanThrow | flagUnsupported},
	OpConstMethodHandle: {"const-method-handle", FormatRaw, flagWritesA | flagUnsupported},
	OpConstMethodType:   {"const-method-type", FormatRaw, flagWritesA | flagUnsupported},
}

func (op Opcode) String() string {
	if op < 0 || op >= opcodeCount {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return opcodeTable[op].name
}

// Format returns the operand layout of the opcode.
func (op Opcode) Format() Format {
	return op.info().format
}

func (op Opcode) info() opInfo {
	if op < 0 || op >= opcodeCount {
		return opInfo{flags: flagUnsupported}
	}
	return opcodeTable[op]
}

func (op Opcode) has(f flag) bool { return op.info().flags&f != 0 }

// IsBranch reports whether the opcode may transfer control to a target.
func (op Opcode) IsBranch() bool { return op.has(flagBranch) }

// IsConditional reports whether the opcode is an if-test.
func (op Opcode) IsConditional() bool { return op >= OpIfEq && op <= OpIfLez }

// IsSwitch reports whether the opcode is a packed or sparse switch.
func (op Opcode) IsSwitch() bool { return op == OpPackedSwitch || op == OpSparseSwitch }

// CanFallthrough reports whether control may continue at the next address.
func (op Opcode) CanFallthrough() bool { return !op.has(flagNoFallthrough) }

// CanThrow reports whether executing the opcode may raise an exception.
func (op Opcode) CanThrow() bool { return op.has(flagCanThrow) }

// IsInvoke reports whether the opcode calls a method.
func (op Opcode) IsInvoke() bool { return op.has(flagInvoke) }

// IsReturn reports whether the opcode returns from the method.
func (op Opcode) IsReturn() bool { return op.has(flagReturn) }

// SetsResult reports whether the opcode fills the pending result register.
func (op Opcode) SetsResult() bool { return op.has(flagSetsResult) }

// WritesRegister reports whether vA is a destination register.
func (op Opcode) WritesRegister() bool { return op.has(flagWritesA) }

// IsPure reports whether the opcode has no effect other than writing vA and
// possibly raising an exception.
func (op Opcode) IsPure() bool { return op.has(flagPure) }

// IsWide reports whether the destination value is 64 bits wide.
func (op Opcode) IsWide() bool { return op.has(flagWide) }

// IsSupported is false for opcodes the interpreter cannot model.
func (op Opcode) IsSupported() bool { return !op.has(flagUnsupported) }

// IsMoveResult reports whether op reads the pending result register.
func (op Opcode) IsMoveResult() bool {
	return op == OpMoveResult || op == OpMoveResultWide || op == OpMoveResultObject
}

// IsConst reports whether op loads a literal.
func (op Opcode) IsConst() bool {
	return op == OpConst || op == OpConstWide || op == OpConstString || op == OpConstClass
}

var opcodeByName map[string]Opcode

// opcodeAliases maps format variants to their canonical opcode.
var opcodeAliases = map[string]Opcode{
	"move/from16":            OpMove,
	"move/16":                OpMove,
	"move-wide/from16":       OpMoveWide,
	"move-wide/16":           OpMoveWide,
	"move-object/from16":     OpMoveObject,
	"move-object/16":         OpMoveObject,
	"const/4":                OpConst,
	"const/16":               OpConst,
	"const/high16":           OpConst,
	"const-wide/16":          OpConstWide,
	"const-wide/32":          OpConstWide,
	"const-wide/high16":      OpConstWide,
	"const-string/jumbo":     OpConstString,
	"goto/16":                OpGoto,
	"goto/32":                OpGoto,
	"filled-new-array/range": OpFilledNewArray,
	"invoke-virtual/range":   OpInvokeVirtual,
	"invoke-super/range":     OpInvokeSuper,
	"invoke-direct/range":    OpInvokeDirect,
	"invoke-static/range":    OpInvokeStatic,
	"invoke-interface/range": OpInvokeInterface,
	"add-int/lit8":           OpAddIntLit,
	"add-int/lit16":          OpAddIntLit,
	"rsub-int":               OpRsubIntLit,
	"rsub-int/lit8":          OpRsubIntLit,
	"mul-int/lit8":           OpMulIntLit,
	"mul-int/lit16":          OpMulIntLit,
	"div-int/lit8":           OpDivIntLit,
	"div-int/lit16":          OpDivIntLit,
	"rem-int/lit8":           OpRemIntLit,
	"rem-int/lit16":          OpRemIntLit,
	"and-int/lit8":           OpAndIntLit,
	"and-int/lit16":          OpAndIntLit,
	"or-int/lit8":            OpOrIntLit,
	"or-int/lit16":           OpOrIntLit,
	"xor-int/lit8":           OpXorIntLit,
	"xor-int/lit16":          OpXorIntLit,
	"shl-int/lit8":           OpShlIntLit,
	"shr-int/lit8":           OpShrIntLit,
	"ushr-int/lit8":          OpUshrIntLit,

	"invoke-polymorphic/range": OpInvokePolymorphic,
	"invoke-custom/range":      OpInvokeCustom,
}

func init() {
	opcodeByName = make(map[string]Opcode, int(opcodeCount)+len(opcodeAliases))
	for op := Opcode(0); op < opcodeCount; op++ {
		opcodeByName[opcodeTable[op].name] = op
	}
	for name, op := range opcodeAliases {
		opcodeByName[name] = op
	}
}

// LookupOpcode resolves an opcode mnemonic, including /2addr and other
// format variants. The second result reports whether the mnemonic was a
// two-address form (vA doubles as the first source).
func LookupOpcode(name string) (op Opcode, twoAddr bool, ok bool) {
	if op, ok := opcodeByName[name]; ok {
		return op, false, true
	}
	const suffix = "/2addr"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		op, ok := opcodeByName[name[:len(name)-len(suffix)]]
		if ok && op.Format() == FormatABC {
			return op, true, true
		}
	}
	return 0, false, false
}
