package smalivm

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Tree renders the graph as a tree: one branch per reached address, with
// its contexts and outgoing edges.
func (g *ExecutionGraph) Tree() treeprint.Tree {
	root := treeprint.NewWithRoot(g.Method.Signature())
	for _, addr := range g.Addresses() {
		n := g.nodes[addr]
		label := fmt.Sprintf("%d: %s", addr, g.Method.Instructions[addr].String())
		if n.PossiblyNonTerminating {
			label += " (possibly non-terminating)"
		}
		br := root.AddMetaBranch(fmt.Sprintf("visits=%d", n.Visits), label)
		for _, c := range n.Contexts {
			br.AddNode(registerSummary(c, 8))
		}
		for _, st := range n.Steps {
			for _, s := range st.Out {
				target := fmt.Sprint(s.Target)
				if s.Target == ExitAddress {
					target = "exit"
				}
				br.AddMetaNode(s.Edge.String(), "-> "+target)
			}
		}
	}
	for _, t := range g.Terminals {
		v := "void"
		if t.Value != nil {
			v = t.Value.String()
		}
		root.AddMetaNode(t.Kind.String(), fmt.Sprintf("%d: %s", t.From, v))
	}
	if g.partial {
		root.AddMetaNode("partial", g.Budget.String())
	}
	return root
}
