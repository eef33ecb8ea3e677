package dex

import (
	"sort"
	"strings"
)

// AccessFlags is the subset of access modifiers the interpreter cares about.
type AccessFlags uint16

const (
	AccPublic AccessFlags = 1 << iota
	AccPrivate
	AccProtected
	AccStatic
	AccFinal
	AccNative
	AccAbstract
	AccInterface
	AccConstructor
	AccSynchronized
)

var accessNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccNative, "native"},
	{AccAbstract, "abstract"},
	{AccInterface, "interface"},
	{AccConstructor, "constructor"},
}

func parseAccess(word string) (AccessFlags, bool) {
	for _, a := range accessNames {
		if a.name == word {
			return a.flag, true
		}
	}
	return 0, false
}

func (f AccessFlags) String() string {
	var parts []string
	for _, a := range accessNames {
		if f&a.flag != 0 {
			parts = append(parts, a.name)
		}
	}
	return strings.Join(parts, " ")
}

// ExceptionHandler covers instructions [Start, End). An empty Type catches
// everything.
type ExceptionHandler struct {
	Start   int
	End     int
	Handler int
	Type    string
}

// Covers reports whether the handler range includes addr.
func (h ExceptionHandler) Covers(addr int) bool { return addr >= h.Start && addr < h.End }

// Method is a method body in instruction-index form.
type Method struct {
	Class        string
	Name         string
	Params       []string
	Return       string
	Access       AccessFlags
	Registers    int
	Instructions []Instruction
	Handlers     []ExceptionHandler
	Throws       []string
}

// Signature returns LClass;->name(params)ret.
func (m *Method) Signature() string {
	return m.Ref().String()
}

// Ref returns the method reference of m.
func (m *Method) Ref() MethodRef {
	return MethodRef{Class: m.Class, Name: m.Name, Params: m.Params, Return: m.Return}
}

func (m *Method) IsStatic() bool { return m.Access&AccStatic != 0 }

// HasBody reports whether the method has instructions to interpret.
func (m *Method) HasBody() bool {
	return m.Access&(AccNative|AccAbstract) == 0 && len(m.Instructions) > 0
}

// Ins returns the number of parameter registers, counting this.
func (m *Method) Ins() int {
	n := len(m.Params)
	if !m.IsStatic() {
		n++
	}
	return n
}

// FirstParameter returns the register holding p0.
func (m *Method) FirstParameter() int { return m.Registers - m.Ins() }

// ParameterRegisters returns the registers of p0..pN in order, with
// their types (this first for instance methods).
func (m *Method) ParameterRegisters() ([]int, []string) {
	first := m.FirstParameter()
	var regs []int
	var types []string
	if !m.IsStatic() {
		regs = append(regs, first)
		types = append(types, m.Class)
		first++
	}
	for i, p := range m.Params {
		regs = append(regs, first+i)
		types = append(types, p)
	}
	return regs, types
}

// HandlersAt returns the handlers covering addr in declaration order.
func (m *Method) HandlersAt(addr int) []ExceptionHandler {
	var out []ExceptionHandler
	for _, h := range m.Handlers {
		if h.Covers(addr) {
			out = append(out, h)
		}
	}
	return out
}

// Clone returns a deep copy of the method.
func (m *Method) Clone() *Method {
	out := *m
	out.Params = append([]string(nil), m.Params...)
	out.Throws = append([]string(nil), m.Throws...)
	out.Handlers = append([]ExceptionHandler(nil), m.Handlers...)
	out.Instructions = make([]Instruction, len(m.Instructions))
	for i, in := range m.Instructions {
		out.Instructions[i] = in.Clone()
	}
	return &out
}

// Field is a field declaration.
type Field struct {
	Name   string
	Type   string
	Access AccessFlags
	// Initial is the literal initializer text, if any.
	Initial    string
	HasInitial bool
}

func (f Field) IsStatic() bool { return f.Access&AccStatic != 0 }

// Class is a parsed class definition.
type Class struct {
	Name       string
	Super      string
	Interfaces []string
	Access     AccessFlags
	Fields     []Field
	Methods    []*Method
}

// Method returns the declared method with the given name and descriptor.
func (c *Class) Method(name, descriptor string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name && m.Ref().Descriptor() == descriptor {
			return m, true
		}
	}
	return nil, false
}

// Field returns the declared field with the given name.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SortedMethods returns the methods ordered by signature.
func (c *Class) SortedMethods() []*Method {
	out := append([]*Method(nil), c.Methods...)
	sort.Slice(out, func(i, j int) bool { return out[i].Signature() < out[j].Signature() })
	return out
}
