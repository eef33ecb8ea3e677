package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/speakeasy-api/simplify/pkg/batch"
	"github.com/speakeasy-api/simplify/smalivm"
)

func newGraphCmd(g *globals) *cobra.Command {
	var (
		method string
		seeds  map[string]string
		table  bool
	)
	cmd := &cobra.Command{
		Use:   "graph FILE... --method SIGNATURE",
		Short: "Execute a method and print its execution graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args)
			if err != nil {
				return err
			}
			m, ok := cat.Method(method)
			if !ok {
				return fmt.Errorf("%w: %s", smalivm.ErrMethodNotFound, method)
			}
			state, err := batch.SeedState(m, seeds)
			if err != nil {
				return err
			}
			vm := smalivm.NewVirtualMachine(cat, g.options().VM)
			graph, err := vm.ExecuteMethod(cmd.Context(), m, state)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if table {
				writeTable(out, graph)
			} else {
				fmt.Fprint(out, graph.Tree().String())
			}
			fmt.Fprintf(out, "fingerprint: %s\n", graph.Fingerprint())
			if v, ok := graph.ReturnConsensus(); ok {
				fmt.Fprintf(out, "returns: %s\n", v)
			}
			if graph.IsPartial() {
				fmt.Fprintf(out, "partial: %s\n", graph.Budget)
			}
			if len(graph.Warnings) > 0 {
				fmt.Fprint(cmd.ErrOrStderr(), batch.FormatWarnings(graph.Warnings))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "Method signature")
	cmd.Flags().StringToStringVarP(&seeds, "seed", "s", nil, "Entry-state seeds, e.g. p0=5,LFoo;->x:I=3")
	cmd.Flags().BoolVar(&table, "table", false, "Print one row per address instead of a tree")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

const instructionColumn = 44

// writeTable prints addresses with their visit counts, context counts and
// observed edges in aligned columns.
func writeTable(w io.Writer, g *smalivm.ExecutionGraph) {
	fmt.Fprintf(w, "%5s  %s  %6s  %4s  %s\n", "addr", runewidth.FillRight("instruction", instructionColumn), "visits", "ctxs", "edges")
	for _, addr := range g.Addresses() {
		n, _ := g.Node(addr)
		text := runewidth.Truncate(g.Method.Instructions[addr].String(), instructionColumn, "…")
		kinds := g.EdgeKinds(addr)
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, k.String())
		}
		sort.Strings(names)
		mark := ""
		if n.PossiblyNonTerminating {
			mark = " *"
		}
		fmt.Fprintf(w, "%5d  %s  %6d  %4d  %s%s\n", addr, runewidth.FillRight(text, instructionColumn), n.Visits, len(n.Contexts), strings.Join(names, ","), mark)
	}
}
