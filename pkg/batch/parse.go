package batch

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/smalivm"
)

// Document is a parsed batch request.
type Document struct {
	// Classes holds assembly sources, one or more classes each.
	Classes []string
	// Targets are method signatures, class descriptors (every method of
	// the class) or "*" (every method with a body).
	Targets []string
	// Initial holds entry-state seeds by method signature. Keys are
	// registers (p0, v3) or static field references.
	Initial map[string]map[string]*yaml.Node
}

// ParseDocument reads a batch request of the form
//
//	classes: |
//	  .class LFoo;
//	  ...
//	optimize: ["LFoo;->f(I)I"]
//	initial:
//	  "LFoo;->f(I)I": {p0: 5}
func ParseDocument(src []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("batch document is not valid YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("batch document is empty")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("batch document must be a mapping")
	}

	doc := &Document{Initial: map[string]map[string]*yaml.Node{}}
	for i := 0; i+1 < len(top.Content); i += 2 {
		keyNode, valueNode := top.Content[i], top.Content[i+1]
		var err error
		switch keyNode.Value {
		case "classes":
			doc.Classes, err = stringList(valueNode, "classes")
		case "optimize":
			doc.Targets, err = stringList(valueNode, "optimize")
		case "initial":
			err = parseInitial(valueNode, doc.Initial)
		default:
			err = fmt.Errorf("line %d: unknown key %q", keyNode.Line, keyNode.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(doc.Classes) == 0 {
		return nil, fmt.Errorf("batch document requires 'classes'")
	}
	if len(doc.Targets) == 0 {
		doc.Targets = []string{"*"}
	}
	return doc, nil
}

// stringList accepts a scalar or a sequence of scalars.
func stringList(n *yaml.Node, key string) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{strings.TrimSpace(n.Value)}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: '%s' entries must be strings", item.Line, key)
			}
			out = append(out, strings.TrimSpace(item.Value))
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: '%s' must be a string or a list of strings", n.Line, key)
}

func parseInitial(n *yaml.Node, out map[string]map[string]*yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: 'initial' must map method signatures to seeds", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		sig, seeds := n.Content[i], n.Content[i+1]
		if seeds.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: seeds of %s must be a mapping", seeds.Line, sig.Value)
		}
		m := map[string]*yaml.Node{}
		for j := 0; j+1 < len(seeds.Content); j += 2 {
			k, v := seeds.Content[j], seeds.Content[j+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: seed %s of %s must be a scalar", v.Line, k.Value, sig.Value)
			}
			m[k.Value] = v
		}
		out[sig.Value] = m
	}
	return nil
}

// initialState converts the seeds of m into an entry state. Register seeds
// take the declared type of the parameter they land on; other registers
// are ints unless the value is a quoted string.
func initialState(m *dex.Method, seeds map[string]*yaml.Node) (*smalivm.InitialState, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	state := &smalivm.InitialState{Registers: map[int]smalivm.Value{}, Fields: map[string]smalivm.Value{}}
	params, types := m.ParameterRegisters()
	declared := map[int]string{}
	for i, r := range params {
		declared[r] = types[i]
	}
	for key, node := range seeds {
		if strings.Contains(key, "->") {
			ref, err := dex.ParseFieldRef(key)
			if err != nil {
				return nil, err
			}
			v, err := seedValue(node, ref.Type)
			if err != nil {
				return nil, fmt.Errorf("seed %s: %w", key, err)
			}
			state.Fields[ref.String()] = v
			continue
		}
		reg, err := registerIndex(m, key)
		if err != nil {
			return nil, err
		}
		typ, ok := declared[reg]
		if !ok {
			typ = dex.TypeInt
			if node.Tag == "!!str" && node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
				typ = dex.TypeString
			}
		}
		v, err := seedValue(node, typ)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", key, err)
		}
		state.Registers[reg] = v
	}
	return state, nil
}

func registerIndex(m *dex.Method, name string) (int, error) {
	if len(name) < 2 || (name[0] != 'v' && name[0] != 'p') {
		return 0, fmt.Errorf("bad register %q", name)
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad register %q", name)
	}
	if name[0] == 'p' {
		if n >= m.Ins() {
			return 0, fmt.Errorf("parameter register %s out of range", name)
		}
		n += m.FirstParameter()
	}
	if n >= m.Registers {
		return 0, fmt.Errorf("register %s out of range", name)
	}
	return n, nil
}

func seedValue(n *yaml.Node, typ string) (smalivm.Value, error) {
	if n.Tag == "!!null" || n.Value == "null" {
		if dex.IsPrimitive(typ) {
			return smalivm.Value{}, fmt.Errorf("null for primitive type %s", typ)
		}
		return smalivm.Null(typ), nil
	}
	switch {
	case typ == dex.TypeString:
		return smalivm.StringSeed(n.Value), nil
	case dex.IsPrimitive(typ):
		v, err := dex.ParseLiteral(n.Value, dex.IsWide(typ))
		if err != nil {
			return smalivm.Value{}, err
		}
		return smalivm.Primitive(typ, v), nil
	case n.Value == "new":
		return smalivm.ObjectSeed(typ), nil
	}
	return smalivm.Value{}, fmt.Errorf("cannot seed %s with %q", typ, n.Value)
}

// SeedState builds an entry state from key=value strings, reading each
// value as a YAML scalar.
func SeedState(m *dex.Method, seeds map[string]string) (*smalivm.InitialState, error) {
	nodes := make(map[string]*yaml.Node, len(seeds))
	for k, v := range seeds {
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(v), &doc); err != nil || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("seed %s: %q is not a scalar", k, v)
		}
		nodes[k] = doc.Content[0]
	}
	return initialState(m, nodes)
}
