package dex

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a malformed assembly line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseClasses parses one or more .class definitions.
func ParseClasses(src string) ([]*Class, error) {
	p := newParser(src)
	var classes []*Class
	var cur *Class
	for p.next() {
		dir, rest := p.directive()
		switch dir {
		case ".class":
			flags, words := splitFlags(strings.Fields(rest))
			if len(words) != 1 {
				return nil, p.errorf(".class expects one type descriptor")
			}
			cur = &Class{Name: words[0], Super: TypeObject, Access: flags}
			if cur.Name == TypeObject {
				cur.Super = ""
			}
			classes = append(classes, cur)
		case ".super", ".implements":
			if cur == nil {
				return nil, p.errorf("%s outside .class", dir)
			}
			t := strings.TrimSpace(rest)
			if dir == ".super" {
				cur.Super = t
			} else {
				cur.Interfaces = append(cur.Interfaces, t)
			}
		case ".source", ".end field":
		case ".annotation":
			if err := p.skipBlock(".end annotation"); err != nil {
				return nil, err
			}
		case ".field":
			if cur == nil {
				return nil, p.errorf(".field outside .class")
			}
			f, err := p.parseField(rest)
			if err != nil {
				return nil, err
			}
			cur.Fields = append(cur.Fields, f)
		case ".method":
			if cur == nil {
				return nil, p.errorf(".method outside .class")
			}
			m, err := p.parseMethod(cur.Name, rest)
			if err != nil {
				return nil, err
			}
			cur.Methods = append(cur.Methods, m)
		default:
			return nil, p.errorf("unexpected %q at class level", p.line())
		}
	}
	if len(classes) == 0 {
		return nil, &ParseError{Line: 1, Msg: "no .class definition"}
	}
	return classes, nil
}

// ParseMethod parses a single .method ... .end method block declared on class.
func ParseMethod(class, src string) (*Method, error) {
	p := newParser(src)
	var m *Method
	for p.next() {
		dir, rest := p.directive()
		if dir != ".method" || m != nil {
			return nil, p.errorf("expected a single .method block, found %q", p.line())
		}
		var err error
		if m, err = p.parseMethod(class, rest); err != nil {
			return nil, err
		}
	}
	if m == nil {
		return nil, &ParseError{Line: 1, Msg: "no .method definition"}
	}
	return m, nil
}

type parser struct {
	lines []string
	pos   int
	cur   string
}

func newParser(src string) *parser {
	return &parser{lines: strings.Split(src, "\n"), pos: -1}
}

// next advances to the next non-blank line with comments removed.
func (p *parser) next() bool {
	for p.pos+1 < len(p.lines) {
		p.pos++
		line := strings.TrimSpace(stripComment(p.lines[p.pos]))
		if line != "" {
			p.cur = line
			return true
		}
	}
	return false
}

func (p *parser) line() string { return p.cur }

func (p *parser) directive() (string, string) {
	if !strings.HasPrefix(p.cur, ".") {
		return "", p.cur
	}
	name, rest, _ := strings.Cut(p.cur, " ")
	rest = strings.TrimSpace(rest)
	if name == ".end" {
		word, _, _ := strings.Cut(rest, " ")
		return ".end " + word, ""
	}
	return name, rest
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.pos + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipBlock(end string) error {
	for p.next() {
		if dir, _ := p.directive(); dir == end {
			return nil
		}
	}
	return p.errorf("missing %s", end)
}

func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

func splitFlags(words []string) (AccessFlags, []string) {
	var flags AccessFlags
	i := 0
	for ; i < len(words); i++ {
		f, ok := parseAccess(words[i])
		if !ok {
			break
		}
		flags |= f
	}
	return flags, words[i:]
}

func (p *parser) parseField(rest string) (Field, error) {
	decl, init, hasInit := strings.Cut(rest, " = ")
	flags, words := splitFlags(strings.Fields(decl))
	if len(words) != 1 {
		return Field{}, p.errorf("malformed .field %q", rest)
	}
	name, typ, ok := strings.Cut(words[0], ":")
	if !ok || name == "" {
		return Field{}, p.errorf("malformed field name %q", words[0])
	}
	if _, err := SplitDescriptors(typ); err != nil {
		return Field{}, p.errorf("field %s: %v", name, err)
	}
	return Field{Name: name, Type: typ, Access: flags, Initial: strings.TrimSpace(init), HasInitial: hasInit}, nil
}

type fixupKind int

const (
	fixTarget fixupKind = iota
	fixSwitch
	fixData
)

type fixup struct {
	insn  int
	label string
	kind  fixupKind
	line  int
}

type switchPayload struct {
	keys   []int32
	labels []string
}

type dataPayload struct {
	width int
	data  []int64
}

type pendingCatch struct {
	typ, start, end, handler string
	line                     int
}

type methodBuilder struct {
	m         *Method
	labels    map[string]int
	pending   []string
	fixups    []fixup
	switches  map[string]switchPayload
	arrays    map[string]dataPayload
	catches   []pendingCatch
	caseLabel map[int][]string
	regsSet   bool
}

func (p *parser) parseMethod(class, header string) (*Method, error) {
	flags, words := splitFlags(strings.Fields(header))
	if len(words) != 1 {
		return nil, p.errorf("malformed .method header %q", header)
	}
	ref, err := ParseMethodRef(class + "->" + words[0])
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	if ref.Name == "<init>" || ref.Name == "<clinit>" {
		flags |= AccConstructor
	}
	b := &methodBuilder{
		m: &Method{
			Class:  class,
			Name:   ref.Name,
			Params: ref.Params,
			Return: ref.Return,
			Access: flags,
		},
		labels:    map[string]int{},
		switches:  map[string]switchPayload{},
		arrays:    map[string]dataPayload{},
		caseLabel: map[int][]string{},
	}
	for p.next() {
		dir, rest := p.directive()
		switch dir {
		case ".end method":
			return b.finish(p)
		case ".registers", ".locals":
			n, err := strconv.ParseInt(rest, 0, 32)
			if err != nil || n < 0 {
				return nil, p.errorf("bad register count %q", rest)
			}
			b.m.Registers = int(n)
			if dir == ".locals" {
				b.m.Registers += b.m.Ins()
			}
			b.regsSet = true
		case ".throws":
			b.m.Throws = append(b.m.Throws, rest)
		case ".catch", ".catchall":
			c, err := p.parseCatch(dir, rest)
			if err != nil {
				return nil, err
			}
			b.catches = append(b.catches, c)
		case ".line", ".prologue", ".epilogue", ".local", ".end local", ".restart", ".source", ".param", ".end param":
		case ".annotation":
			if err := p.skipBlock(".end annotation"); err != nil {
				return nil, err
			}
		case ".packed-switch", ".sparse-switch", ".array-data":
			if err := p.parsePayload(b, dir, rest); err != nil {
				return nil, err
			}
		case "":
			if strings.HasPrefix(rest, ":") {
				name := rest[1:]
				if _, dup := b.labels[name]; dup {
					return nil, p.errorf("duplicate label :%s", name)
				}
				b.labels[name] = len(b.m.Instructions)
				b.pending = append(b.pending, name)
				continue
			}
			if err := p.parseInstruction(b, rest); err != nil {
				return nil, err
			}
			b.pending = nil
		default:
			return nil, p.errorf("unexpected directive %s in method body", dir)
		}
	}
	return nil, p.errorf("missing .end method for %s", ref)
}

func (p *parser) parseCatch(dir, rest string) (pendingCatch, error) {
	c := pendingCatch{line: p.pos + 1}
	if dir == ".catch" {
		typ, tail, ok := strings.Cut(rest, " ")
		if !ok {
			return c, p.errorf("malformed .catch %q", rest)
		}
		c.typ, rest = typ, strings.TrimSpace(tail)
	}
	open, closing := strings.IndexByte(rest, '{'), strings.IndexByte(rest, '}')
	if open != 0 || closing < 0 {
		return c, p.errorf("malformed catch range %q", rest)
	}
	start, end, ok := strings.Cut(rest[1:closing], "..")
	if !ok {
		return c, p.errorf("malformed catch range %q", rest)
	}
	c.start = labelName(start)
	c.end = labelName(end)
	c.handler = labelName(rest[closing+1:])
	if c.start == "" || c.end == "" || c.handler == "" {
		return c, p.errorf("malformed catch range %q", rest)
	}
	return c, nil
}

func labelName(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "@") {
		return s
	}
	return ""
}

func (p *parser) parsePayload(b *methodBuilder, dir, rest string) error {
	if len(b.pending) == 0 {
		return p.errorf("%s payload without a label", dir)
	}
	owners := b.pending
	b.pending = nil
	switch dir {
	case ".packed-switch":
		first, err := ParseLiteral(rest, false)
		if err != nil {
			return p.errorf("bad packed-switch key %q", rest)
		}
		var sp switchPayload
		for p.next() {
			if d, _ := p.directive(); d == ".end packed-switch" {
				for _, o := range owners {
					b.switches[o] = sp
				}
				return nil
			}
			sp.keys = append(sp.keys, int32(first)+int32(len(sp.keys)))
			sp.labels = append(sp.labels, p.line())
		}
		return p.errorf("missing .end packed-switch")
	case ".sparse-switch":
		var sp switchPayload
		for p.next() {
			if d, _ := p.directive(); d == ".end sparse-switch" {
				for _, o := range owners {
					b.switches[o] = sp
				}
				return nil
			}
			k, l, ok := strings.Cut(p.line(), "->")
			if !ok {
				return p.errorf("malformed sparse-switch entry %q", p.line())
			}
			key, err := ParseLiteral(strings.TrimSpace(k), false)
			if err != nil {
				return p.errorf("bad sparse-switch key %q", k)
			}
			sp.keys = append(sp.keys, int32(key))
			sp.labels = append(sp.labels, strings.TrimSpace(l))
		}
		return p.errorf("missing .end sparse-switch")
	default:
		w, err := strconv.Atoi(rest)
		if err != nil || (w != 1 && w != 2 && w != 4 && w != 8) {
			return p.errorf("bad array-data width %q", rest)
		}
		dp := dataPayload{width: w}
		for p.next() {
			if d, _ := p.directive(); d == ".end array-data" {
				for _, o := range owners {
					b.arrays[o] = dp
				}
				return nil
			}
			for _, f := range strings.Fields(p.line()) {
				v, err := ParseLiteral(f, w == 8)
				if err != nil {
					return p.errorf("bad array-data element %q", f)
				}
				dp.data = append(dp.data, v)
			}
		}
		return p.errorf("missing .end array-data")
	}
}

func (b *methodBuilder) resolve(label string) (int, bool) {
	if strings.HasPrefix(label, "@") {
		n, err := strconv.Atoi(label[1:])
		return n, err == nil
	}
	n, ok := b.labels[strings.TrimPrefix(label, ":")]
	return n, ok
}

func (b *methodBuilder) finish(p *parser) (*Method, error) {
	m := b.m
	for _, f := range b.fixups {
		in := &m.Instructions[f.insn]
		switch f.kind {
		case fixTarget:
			t, ok := b.resolve(f.label)
			if !ok {
				return nil, &ParseError{Line: f.line, Msg: fmt.Sprintf("undefined label %s", f.label)}
			}
			in.Target = t
		case fixSwitch:
			sp, ok := b.switches[strings.TrimPrefix(f.label, ":")]
			if !ok {
				return nil, &ParseError{Line: f.line, Msg: fmt.Sprintf("undefined switch payload %s", f.label)}
			}
			in.Keys = append([]int32(nil), sp.keys...)
			b.caseLabel[f.insn] = sp.labels
			in.Targets = make([]int, len(sp.labels))
		case fixData:
			dp, ok := b.arrays[strings.TrimPrefix(f.label, ":")]
			if !ok {
				return nil, &ParseError{Line: f.line, Msg: fmt.Sprintf("undefined array payload %s", f.label)}
			}
			in.Width = dp.width
			in.Data = append([]int64(nil), dp.data...)
		}
	}
	for insn, labels := range b.caseLabel {
		for i, l := range labels {
			t, ok := b.resolve(l)
			if !ok {
				return nil, &ParseError{Line: p.pos + 1, Msg: fmt.Sprintf("undefined switch target %s", l)}
			}
			m.Instructions[insn].Targets[i] = t
		}
	}
	for _, c := range b.catches {
		start, ok1 := b.resolve(c.start)
		end, ok2 := b.resolve(c.end)
		handler, ok3 := b.resolve(c.handler)
		if !ok1 || !ok2 || !ok3 {
			return nil, &ParseError{Line: c.line, Msg: "undefined label in catch directive"}
		}
		if start > end {
			return nil, &ParseError{Line: c.line, Msg: "catch range ends before it starts"}
		}
		m.Handlers = append(m.Handlers, ExceptionHandler{Start: start, End: end, Handler: handler, Type: c.typ})
	}
	if m.Registers < m.Ins() {
		return nil, &ParseError{Line: p.pos + 1, Msg: fmt.Sprintf("%s: %d registers cannot hold %d parameters", m.Signature(), m.Registers, m.Ins())}
	}
	if err := Validate(m); err != nil {
		return nil, &ParseError{Line: p.pos + 1, Msg: err.Error()}
	}
	return m, nil
}

func (p *parser) parseInstruction(b *methodBuilder, text string) error {
	mnemonic, rest, _ := strings.Cut(text, " ")
	op, twoAddr, ok := LookupOpcode(mnemonic)
	if !ok {
		return p.errorf("unknown instruction %q", mnemonic)
	}
	if !b.regsSet && (b.m.Access&(AccNative|AccAbstract)) == 0 {
		return p.errorf(".registers or .locals must precede instructions")
	}
	ops := splitOperands(rest)
	in := Instruction{Op: op}
	idx := len(b.m.Instructions)
	reg := func(i int) (int, error) {
		if i >= len(ops) {
			return 0, p.errorf("%s: missing operand %d", mnemonic, i+1)
		}
		return b.register(p, ops[i])
	}
	want := func(n int) error {
		if len(ops) != n {
			return p.errorf("%s: expected %d operands, got %d", mnemonic, n, len(ops))
		}
		return nil
	}
	var err error
	switch op.Format() {
	case FormatNone:
		err = want(0)
	case FormatA:
		if err = want(1); err == nil {
			in.A, err = reg(0)
		}
	case FormatAB:
		if err = want(2); err == nil {
			err = regs(reg, &in.A, &in.B)
		}
	case FormatABC:
		if twoAddr {
			if err = want(2); err == nil {
				err = regs(reg, &in.A, &in.C)
				in.B = in.A
			}
		} else if err = want(3); err == nil {
			err = regs(reg, &in.A, &in.B, &in.C)
		}
	case FormatABLit:
		if err = want(3); err == nil {
			if err = regs(reg, &in.A, &in.B); err == nil {
				in.Literal, err = ParseLiteral(ops[2], false)
			}
		}
	case FormatALit:
		if err = want(2); err == nil {
			if in.A, err = reg(0); err == nil {
				in.Literal, err = ParseLiteral(ops[1], op == OpConstWide)
			}
		}
	case FormatAString:
		if err = want(2); err == nil {
			if in.A, err = reg(0); err == nil {
				in.Str, err = strconv.Unquote(ops[1])
			}
		}
	case FormatAType:
		if err = want(2); err == nil {
			in.A, err = reg(0)
			in.Type = ops[1]
		}
	case FormatABType:
		if err = want(3); err == nil {
			err = regs(reg, &in.A, &in.B)
			in.Type = ops[2]
		}
	case FormatABTarget:
		if err = want(3); err == nil {
			err = regs(reg, &in.A, &in.B)
			b.fixups = append(b.fixups, fixup{insn: idx, label: ops[2], kind: fixTarget, line: p.pos + 1})
		}
	case FormatATarget:
		if err = want(2); err == nil {
			in.A, err = reg(0)
			b.fixups = append(b.fixups, fixup{insn: idx, label: ops[1], kind: fixTarget, line: p.pos + 1})
		}
	case FormatTarget:
		if err = want(1); err == nil {
			b.fixups = append(b.fixups, fixup{insn: idx, label: ops[0], kind: fixTarget, line: p.pos + 1})
		}
	case FormatAField, FormatABField:
		n := 2
		if op.Format() == FormatABField {
			n = 3
		}
		if err = want(n); err == nil {
			if n == 2 {
				in.A, err = reg(0)
			} else {
				err = regs(reg, &in.A, &in.B)
			}
			if err == nil {
				in.Ref = ops[n-1]
				_, err = ParseFieldRef(in.Ref)
			}
		}
	case FormatInvoke, FormatArgsType:
		if err = want(2); err == nil {
			if in.Args, err = b.registerList(p, ops[0]); err == nil {
				if op.Format() == FormatInvoke {
					in.Ref = ops[1]
					_, err = ParseMethodRef(in.Ref)
				} else {
					in.Type = ops[1]
				}
			}
		}
	case FormatASwitch:
		if len(ops) < 1 {
			err = want(2)
			break
		}
		if in.A, err = reg(0); err != nil {
			break
		}
		if len(ops) == 2 && !strings.Contains(ops[1], "->") {
			b.fixups = append(b.fixups, fixup{insn: idx, label: ops[1], kind: fixSwitch, line: p.pos + 1})
			break
		}
		var labels []string
		for _, o := range ops[1:] {
			k, l, ok := strings.Cut(o, "->")
			if !ok {
				err = p.errorf("malformed switch case %q", o)
				break
			}
			key, kerr := ParseLiteral(strings.TrimSpace(k), false)
			if kerr != nil {
				err = p.errorf("bad switch key %q", k)
				break
			}
			in.Keys = append(in.Keys, int32(key))
			labels = append(labels, strings.TrimSpace(l))
		}
		if err == nil {
			in.Targets = make([]int, len(labels))
			b.caseLabel[idx] = labels
		}
	case FormatAData:
		if len(ops) < 2 {
			err = want(2)
			break
		}
		if in.A, err = reg(0); err != nil {
			break
		}
		if len(ops) == 2 && strings.HasPrefix(ops[1], ":") {
			b.fixups = append(b.fixups, fixup{insn: idx, label: ops[1], kind: fixData, line: p.pos + 1})
			break
		}
		if in.Width, err = strconv.Atoi(ops[1]); err != nil {
			err = p.errorf("bad array-data width %q", ops[1])
			break
		}
		for _, o := range ops[2:] {
			v, lerr := ParseLiteral(o, in.Width == 8)
			if lerr != nil {
				err = p.errorf("bad array-data element %q", o)
				break
			}
			in.Data = append(in.Data, v)
		}
	case FormatRaw:
		if len(ops) < 2 {
			err = p.errorf("%s: expected operands", mnemonic)
			break
		}
		if op.IsInvoke() {
			in.Args, err = b.registerList(p, ops[0])
		} else {
			in.A, err = reg(0)
		}
		in.Str = strings.Join(ops[1:], ", ")
	}
	if err != nil {
		if _, ok := err.(*ParseError); ok {
			return err
		}
		return p.errorf("%s: %v", mnemonic, err)
	}
	b.m.Instructions = append(b.m.Instructions, in)
	return nil
}

func regs(reg func(int) (int, error), dst ...*int) error {
	for i, d := range dst {
		r, err := reg(i)
		if err != nil {
			return err
		}
		*d = r
	}
	return nil
}

func (b *methodBuilder) register(p *parser, tok string) (int, error) {
	if len(tok) < 2 || (tok[0] != 'v' && tok[0] != 'p') {
		return 0, p.errorf("expected register, got %q", tok)
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 {
		return 0, p.errorf("bad register %q", tok)
	}
	if tok[0] == 'p' {
		if n >= b.m.Ins() {
			return 0, p.errorf("parameter register %s out of range", tok)
		}
		n += b.m.FirstParameter()
	}
	if n >= b.m.Registers {
		return 0, p.errorf("register %s out of range (%d registers)", tok, b.m.Registers)
	}
	return n, nil
}

func (b *methodBuilder) registerList(p *parser, tok string) ([]int, error) {
	if !strings.HasPrefix(tok, "{") || !strings.HasSuffix(tok, "}") {
		return nil, p.errorf("expected register list, got %q", tok)
	}
	body := strings.TrimSpace(tok[1 : len(tok)-1])
	if body == "" {
		return []int{}, nil
	}
	if from, to, ok := strings.Cut(body, ".."); ok {
		lo, err := b.register(p, strings.TrimSpace(from))
		if err != nil {
			return nil, err
		}
		hi, err := b.register(p, strings.TrimSpace(to))
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, p.errorf("empty register range %q", tok)
		}
		out := make([]int, 0, hi-lo+1)
		for r := lo; r <= hi; r++ {
			out = append(out, r)
		}
		return out, nil
	}
	var out []int
	for _, part := range strings.Split(body, ",") {
		r, err := b.register(p, strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// splitOperands splits on top-level commas, keeping quoted strings and
// register lists intact.
func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && inQuote:
			i++
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// ParseLiteral parses an integer, float, char or boolean literal. Floating
// point literals yield their IEEE bit pattern (float32 unless wide).
// Non-wide integers are sign-extended from 32 bits.
func ParseLiteral(s string, wide bool) (int64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return 1, nil
	case "false", "null":
		return 0, nil
	}
	if len(s) >= 3 && s[0] == '\'' && s[len(s)-1] == '\'' {
		r, _, tail, err := strconv.UnquoteChar(s[1:len(s)-1], '\'')
		if err != nil || tail != "" {
			return 0, fmt.Errorf("bad char literal %s", s)
		}
		return int64(r), nil
	}
	body := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	isHex := strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X")
	if !isHex && isFloatLiteral(body) {
		return parseFloatLiteral(s, wide)
	}
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'L', 'l':
			s, wide = s[:n-1], true
		case 't', 'T', 's', 'S':
			s = s[:n-1]
		}
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, fmt.Errorf("bad literal %q", s)
		}
		v = int64(u)
	}
	if !wide {
		if v < math.MinInt32 || v > math.MaxUint32 {
			return 0, fmt.Errorf("literal %q out of 32-bit range", s)
		}
		v = int64(int32(v))
	}
	return v, nil
}

func isFloatLiteral(s string) bool {
	if strings.HasPrefix(s, "Infinity") || strings.HasPrefix(s, "NaN") {
		return true
	}
	if strings.ContainsAny(s, ".eE") {
		return true
	}
	n := len(s)
	return n > 1 && (s[n-1] == 'f' || s[n-1] == 'F' || s[n-1] == 'd' || s[n-1] == 'D')
}

func parseFloatLiteral(s string, wide bool) (int64, error) {
	n := len(s)
	switch s[n-1] {
	case 'f', 'F':
		s, wide = s[:n-1], false
	case 'd', 'D':
		s, wide = s[:n-1], true
	}
	switch strings.TrimPrefix(s, "+") {
	case "Infinity":
		s = "+Inf"
	case "-Infinity":
		s = "-Inf"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad float literal %q", s)
	}
	if wide {
		return int64(math.Float64bits(f)), nil
	}
	return int64(int32(math.Float32bits(float32(f)))), nil
}

// Validate checks that every branch target, switch target and handler
// address lies inside the method.
func Validate(m *Method) error {
	n := len(m.Instructions)
	for i, in := range m.Instructions {
		if in.Op.IsBranch() && !in.Op.IsSwitch() && (in.Target < 0 || in.Target >= n) {
			return fmt.Errorf("%s: instruction %d (%s) branches outside the method", m.Signature(), i, in.Op)
		}
		for _, t := range in.Targets {
			if t < 0 || t >= n {
				return fmt.Errorf("%s: instruction %d (%s) has a switch target outside the method", m.Signature(), i, in.Op)
			}
		}
		if len(in.Keys) != len(in.Targets) {
			return fmt.Errorf("%s: instruction %d has mismatched switch payload", m.Signature(), i)
		}
	}
	for _, h := range m.Handlers {
		if h.Start < 0 || h.End > n || h.Start > h.End || h.Handler < 0 || h.Handler >= n {
			return fmt.Errorf("%s: exception handler %d..%d -> %d outside the method", m.Signature(), h.Start, h.End, h.Handler)
		}
	}
	return nil
}
