package main

import (
	"fmt"
	"os"

	dex "github.com/speakeasy-api/simplify"
)

// Dumps the decoded instructions of every method in an assembly file with
// their static successors and live-out registers.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: inspect-method FILE [SIGNATURE...]")
		os.Exit(2)
	}
	src, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cat, err := dex.ParseCatalog(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		os.Exit(1)
	}

	sigs := os.Args[2:]
	if len(sigs) == 0 {
		sigs = cat.Signatures()
	}
	for _, sig := range sigs {
		m, ok := cat.Method(sig)
		if !ok {
			fmt.Printf("\n=== %s ===\nnot found\n", sig)
			continue
		}
		fmt.Printf("\n=== %s (registers=%d, ins=%d) ===\n", sig, m.Registers, m.Ins())
		if !m.HasBody() {
			fmt.Println("no body")
			continue
		}
		live := dex.ComputeLiveness(m)
		for i := range m.Instructions {
			in := &m.Instructions[i]
			fmt.Printf("%3d: %-40s succ=%v exc=%v live=%v\n", i, in.String(), m.Successors(i), m.ExceptionSuccessors(i), live.LiveOutSet(i))
		}
		for _, h := range m.Handlers {
			t := h.Type
			if t == "" {
				t = "*"
			}
			fmt.Printf("     catch %s [%d, %d) -> %d\n", t, h.Start, h.End, h.Handler)
		}
	}
}
