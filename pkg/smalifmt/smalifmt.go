// Package smalifmt renders methods back to the textual assembly accepted by
// dex.ParseMethod, with generated labels for branch targets, switch cases
// and exception handlers.
package smalifmt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	dex "github.com/speakeasy-api/simplify"
)

// Config controls the rendering.
type Config struct {
	// Addresses names every label after the address it marks (:a12)
	// instead of after the role of the reference (:cond_0, :catch_1).
	Addresses bool
	// Indent is the number of spaces in front of each body line.
	Indent int
	// Params renders parameter registers as p0..pN.
	Params bool
	// Comments lists the trailing annotations to emit: "address",
	// "successors", "handlers".
	Comments []string
}

const maxCommentColumn = 56

var validComments = []string{
	"address",
	"successors",
	"handlers",
}

// ValidateConfig normalizes cfg and rejects unknown comment kinds.
func ValidateConfig(cfg Config) (Config, error) {
	comments := make([]string, 0, len(cfg.Comments))
	for _, c := range cfg.Comments {
		valid := false
		for _, vc := range validComments {
			if strings.EqualFold(strings.TrimSpace(c), vc) {
				comments = append(comments, vc)
				valid = true
				break
			}
		}
		if !valid {
			return Config{}, fmt.Errorf("invalid comment kind %q, must be one of %s", c, strings.Join(validComments, ", "))
		}
	}
	cfg.Comments = comments
	switch {
	case cfg.Indent == 0:
		cfg.Indent = 4
	case cfg.Indent < 0 || cfg.Indent > 16:
		return Config{}, fmt.Errorf("indent %d out of range 0..16", cfg.Indent)
	}
	return cfg, nil
}

func (cfg Config) has(comment string) bool {
	for _, c := range cfg.Comments {
		if c == comment {
			return true
		}
	}
	return false
}

// Format renders m as a .method block.
func Format(m *dex.Method, cfg Config) (string, error) {
	cfg, err := ValidateConfig(cfg)
	if err != nil {
		return "", err
	}
	if err := dex.Validate(m); err != nil {
		return "", err
	}
	f := &formatter{m: m, cfg: cfg, pad: strings.Repeat(" ", cfg.Indent), labels: newLabeler(cfg.Addresses)}
	return f.format(), nil
}

// FormatClass renders a class and all of its methods.
func FormatClass(c *dex.Class, cfg Config) (string, error) {
	var sb strings.Builder
	sb.WriteString(".class ")
	if s := c.Access.String(); s != "" {
		sb.WriteString(s + " ")
	}
	sb.WriteString(c.Name + "\n")
	if c.Super != "" {
		fmt.Fprintf(&sb, ".super %s\n", c.Super)
	}
	for _, i := range c.Interfaces {
		fmt.Fprintf(&sb, ".implements %s\n", i)
	}
	for _, fd := range c.Fields {
		sb.WriteString("\n.field ")
		if s := fd.Access.String(); s != "" {
			sb.WriteString(s + " ")
		}
		fmt.Fprintf(&sb, "%s:%s", fd.Name, fd.Type)
		if fd.HasInitial {
			fmt.Fprintf(&sb, " = %s", fd.Initial)
		}
		sb.WriteString("\n")
	}
	for _, m := range c.SortedMethods() {
		text, err := Format(m, cfg)
		if err != nil {
			return "", fmt.Errorf("%s: %w", m.Signature(), err)
		}
		sb.WriteString("\n" + text)
	}
	return sb.String(), nil
}

type labelKind int

const (
	labelCond labelKind = iota
	labelGoto
	labelPackedCase
	labelSparseCase
	labelTryStart
	labelTryEnd
	labelCatch
	labelCatchAll
	labelPackedData
	labelSparseData
	labelArrayData
	labelKindCount
)

var labelPrefix = [labelKindCount]string{
	"cond", "goto", "pswitch", "sswitch", "try_start", "try_end",
	"catch", "catchall", "pswitch_data", "sswitch_data", "array",
}

type label struct {
	kind labelKind
	name string
}

// labeler hands out label names. In address mode every reference to an
// address shares one name.
type labeler struct {
	byAddress bool
	at        map[int][]label
	count     [labelKindCount]int
}

func newLabeler(byAddress bool) *labeler {
	return &labeler{byAddress: byAddress, at: map[int][]label{}}
}

func (l *labeler) ref(addr int, kind labelKind) string {
	if l.byAddress {
		if ls := l.at[addr]; len(ls) > 0 {
			return ":" + ls[0].name
		}
		name := "a" + strconv.Itoa(addr)
		l.at[addr] = []label{{kind, name}}
		return ":" + name
	}
	for _, lb := range l.at[addr] {
		if lb.kind == kind {
			return ":" + lb.name
		}
	}
	name := labelPrefix[kind] + "_" + strconv.Itoa(l.count[kind])
	l.count[kind]++
	l.at[addr] = append(l.at[addr], label{kind, name})
	return ":" + name
}

// payload returns a fresh label that marks no instruction.
func (l *labeler) payload(kind labelKind) string {
	name := labelPrefix[kind] + "_" + strconv.Itoa(l.count[kind])
	l.count[kind]++
	return ":" + name
}

type formatter struct {
	m        *dex.Method
	cfg      Config
	pad      string
	labels   *labeler
	payloads []string
}

type line struct {
	text    string
	comment string
}

func (f *formatter) format() string {
	m := f.m
	// Handler labels first so try ranges get the lowest numbers.
	catches := make([]string, len(m.Handlers))
	for i, h := range m.Handlers {
		start := f.labels.ref(h.Start, labelTryStart)
		end := f.labels.ref(h.End, labelTryEnd)
		if h.Type == "" {
			catches[i] = fmt.Sprintf(".catchall {%s .. %s} %s", start, end, f.labels.ref(h.Handler, labelCatchAll))
		} else {
			catches[i] = fmt.Sprintf(".catch %s {%s .. %s} %s", h.Type, start, end, f.labels.ref(h.Handler, labelCatch))
		}
	}
	body := make([]line, len(m.Instructions))
	for addr := range m.Instructions {
		body[addr] = line{text: f.instruction(addr), comment: f.comment(addr)}
	}

	var sb strings.Builder
	sb.WriteString(".method ")
	if s := m.Access.String(); s != "" {
		sb.WriteString(s + " ")
	}
	sb.WriteString(m.Name + m.Ref().Descriptor() + "\n")
	fmt.Fprintf(&sb, "%s.registers %d\n", f.pad, m.Registers)
	for _, t := range m.Throws {
		fmt.Fprintf(&sb, "%s.throws %s\n", f.pad, t)
	}
	column := f.commentColumn(body)
	for addr, ln := range body {
		f.writeLabels(&sb, addr)
		sb.WriteString(f.pad + ln.text)
		if ln.comment != "" {
			sb.WriteString(strings.Repeat(" ", column-runewidth.StringWidth(ln.text)))
			sb.WriteString("# " + ln.comment)
		}
		sb.WriteString("\n")
	}
	f.writeLabels(&sb, len(body))
	for _, c := range catches {
		sb.WriteString(f.pad + c + "\n")
	}
	for _, p := range f.payloads {
		sb.WriteString("\n" + p)
	}
	sb.WriteString(".end method\n")
	return sb.String()
}

func (f *formatter) writeLabels(sb *strings.Builder, addr int) {
	for _, lb := range f.labels.at[addr] {
		fmt.Fprintf(sb, "%s:%s\n", f.pad, lb.name)
	}
}

func (f *formatter) commentColumn(body []line) int {
	width := 0
	for _, ln := range body {
		if ln.comment == "" {
			continue
		}
		if w := runewidth.StringWidth(ln.text); w > width {
			width = w
		}
	}
	return min(width, maxCommentColumn) + 2
}

func (f *formatter) register(r int) string {
	if first := f.m.FirstParameter(); f.cfg.Params && r >= first {
		return "p" + strconv.Itoa(r-first)
	}
	return "v" + strconv.Itoa(r)
}

func (f *formatter) instruction(addr int) string {
	in := &f.m.Instructions[addr]
	kind := labelGoto
	if in.Op.IsConditional() {
		kind = labelCond
	}
	target := func(t int) string { return f.labels.ref(t, kind) }
	switch in.Op.Format() {
	case dex.FormatASwitch:
		return f.switchInstruction(in)
	case dex.FormatAData:
		name := f.labels.payload(labelArrayData)
		f.payloads = append(f.payloads, arrayPayload(f.pad, name, in))
		return fmt.Sprintf("%s %s, %s", in.Op, f.register(in.A), name)
	}
	return in.Render(target, f.register)
}

// switchInstruction emits a payload block, except for a packed switch
// whose keys are no longer consecutive, which is written inline.
func (f *formatter) switchInstruction(in *dex.Instruction) string {
	packed := in.Op == dex.OpPackedSwitch
	caseKind := labelSparseCase
	if packed {
		caseKind = labelPackedCase
	}
	cases := make([]string, len(in.Targets))
	for i, t := range in.Targets {
		cases[i] = f.labels.ref(t, caseKind)
	}
	if packed && !consecutive(in.Keys) {
		parts := make([]string, len(cases))
		for i := range cases {
			parts[i] = fmt.Sprintf("%s -> %s", dex.FormatLiteral(int64(in.Keys[i])), cases[i])
		}
		return fmt.Sprintf("%s %s, %s", in.Op, f.register(in.A), strings.Join(parts, ", "))
	}
	var sb strings.Builder
	var name string
	if packed {
		name = f.labels.payload(labelPackedData)
		first := int64(0)
		if len(in.Keys) > 0 {
			first = int64(in.Keys[0])
		}
		fmt.Fprintf(&sb, "%s%s\n%s.packed-switch %s\n", f.pad, name, f.pad, dex.FormatLiteral(first))
		for _, c := range cases {
			fmt.Fprintf(&sb, "%s    %s\n", f.pad, c)
		}
		fmt.Fprintf(&sb, "%s.end packed-switch\n", f.pad)
	} else {
		name = f.labels.payload(labelSparseData)
		fmt.Fprintf(&sb, "%s%s\n%s.sparse-switch\n", f.pad, name, f.pad)
		for i, c := range cases {
			fmt.Fprintf(&sb, "%s    %s -> %s\n", f.pad, dex.FormatLiteral(int64(in.Keys[i])), c)
		}
		fmt.Fprintf(&sb, "%s.end sparse-switch\n", f.pad)
	}
	f.payloads = append(f.payloads, sb.String())
	return fmt.Sprintf("%s %s, %s", in.Op, f.register(in.A), name)
}

func arrayPayload(pad, name string, in *dex.Instruction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s\n%s.array-data %d\n", pad, name, pad, in.Width)
	for _, d := range in.Data {
		fmt.Fprintf(&sb, "%s    %s\n", pad, dex.FormatLiteral(d))
	}
	fmt.Fprintf(&sb, "%s.end array-data\n", pad)
	return sb.String()
}

func consecutive(keys []int32) bool {
	for i := 1; i < len(keys); i++ {
		if int64(keys[i]) != int64(keys[i-1])+1 {
			return false
		}
	}
	return true
}

func (f *formatter) comment(addr int) string {
	var parts []string
	if f.cfg.has("address") {
		parts = append(parts, "@"+strconv.Itoa(addr))
	}
	if f.cfg.has("successors") {
		succ := f.m.Successors(addr)
		if len(succ) > 0 {
			s := make([]string, len(succ))
			for i, n := range succ {
				s[i] = strconv.Itoa(n)
			}
			parts = append(parts, "-> "+strings.Join(s, ", "))
		}
	}
	if f.cfg.has("handlers") {
		hs := f.m.HandlersAt(addr)
		if len(hs) > 0 {
			names := make([]string, len(hs))
			for i, h := range hs {
				t := h.Type
				if t == "" {
					t = "*"
				}
				names[i] = t + "@" + strconv.Itoa(h.Handler)
			}
			sort.Strings(names)
			parts = append(parts, "catch "+strings.Join(names, " "))
		}
	}
	return strings.Join(parts, " ")
}
