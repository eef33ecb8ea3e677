package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speakeasy-api/simplify/pkg/smalifmt"
)

func newDisasmCmd(g *globals) *cobra.Command {
	var (
		methods []string
		format  formatFlags
	)
	cmd := &cobra.Command{
		Use:   "disasm FILE...",
		Short: "Re-render assembly with generated labels and annotations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(methods) == 0 {
				for _, c := range cat.Classes() {
					text, err := smalifmt.FormatClass(c, format.config())
					if err != nil {
						return err
					}
					fmt.Fprintln(out, text)
				}
				return nil
			}
			for _, sig := range methods {
				m, ok := cat.Method(sig)
				if !ok {
					return fmt.Errorf("method %s not found", sig)
				}
				text, err := smalifmt.Format(m, format.config())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&methods, "method", "m", nil, "Only these method signatures")
	format.register(cmd)
	return cmd
}
