package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/speakeasy-api/simplify/pkg/batch"
	"github.com/speakeasy-api/simplify/pkg/smalifmt"
	"github.com/speakeasy-api/simplify/pkg/store"
)

type formatFlags struct {
	addresses bool
	params    bool
	comments  []string
}

func (f *formatFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.addresses, "addresses", false, "Name labels after instruction addresses")
	cmd.Flags().BoolVar(&f.params, "params", true, "Render parameter registers as p0..pN")
	cmd.Flags().StringSliceVar(&f.comments, "comments", nil, "Trailing comments: address, successors, handlers")
}

func (f *formatFlags) config() smalifmt.Config {
	return smalifmt.Config{Addresses: f.addresses, Params: f.params, Comments: f.comments}
}

func newOptimizeCmd(g *globals) *cobra.Command {
	var (
		methods   []string
		storePath string
		workers   int
		output    string
		format    formatFlags
	)
	cmd := &cobra.Command{
		Use:   "optimize FILE...",
		Short: "Optimize methods and print the rewritten assembly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args)
			if err != nil {
				return err
			}
			sigs, err := batch.ResolveTargets(cat, methods)
			if err != nil {
				return err
			}
			opts := batch.Options{Optimize: g.options(), Format: format.config(), Workers: g.file.Workers}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if storePath == "" {
				storePath = g.file.Store
			}
			if storePath != "" {
				s, err := store.Open(storePath)
				if err != nil {
					return err
				}
				defer s.Close()
				opts.Writer = s
			}

			res, err := batch.Run(cmd.Context(), cat, sigs, nil, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch output {
			case "yaml":
				text, err := res.YAML()
				if err != nil {
					return err
				}
				_, _ = out.Write(text)
			case "text":
				for _, m := range res.Methods {
					if m.Error != "" {
						continue
					}
					fmt.Fprintf(out, "# %s changed=%v iterations=%d partial=%v\n%s\n", m.Signature, m.Changed, m.Iterations, m.Partial, m.Assembly)
				}
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			if w := res.Warnings(); len(w) > 0 {
				fmt.Fprint(cmd.ErrOrStderr(), batch.FormatWarnings(w))
			}
			if res.Failed() {
				return fmt.Errorf("some methods could not be optimized")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&methods, "method", "m", []string{"*"}, "Method signatures or class descriptors to optimize")
	cmd.Flags().StringVar(&storePath, "store", "", "Also write changed methods to a LevelDB store at this path")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Methods optimized in parallel (default: GOMAXPROCS)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or yaml")
	format.register(cmd)
	return cmd
}

func newBatchCmd(g *globals) *cobra.Command {
	var (
		workers int
		format  formatFlags
	)
	cmd := &cobra.Command{
		Use:   "batch DOCUMENT",
		Short: "Run a YAML batch document and print the results as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}
			opts := batch.Options{Optimize: g.options(), Format: format.config(), Workers: g.file.Workers}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			res, err := batch.OptimizeDocument(cmd.Context(), src, opts)
			if err != nil {
				return err
			}
			text, err := res.YAML()
			if err != nil {
				return err
			}
			_, _ = cmd.OutOrStdout().Write(text)
			if w := res.Warnings(); len(w) > 0 {
				fmt.Fprint(cmd.ErrOrStderr(), batch.FormatWarnings(w))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Methods optimized in parallel (default: GOMAXPROCS)")
	format.register(cmd)
	return cmd
}
