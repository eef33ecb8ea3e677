package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speakeasy-api/simplify/pkg/smalifmt"
	"github.com/speakeasy-api/simplify/pkg/store"
)

func newStoreCmd(g *globals) *cobra.Command {
	var path string
	open := func() (*store.Store, error) {
		if path == "" {
			path = g.file.Store
		}
		if path == "" {
			return nil, fmt.Errorf("no store path: pass --store or set 'store' in the config file")
		}
		return store.Open(path)
	}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect a method store written by optimize --store",
	}
	cmd.PersistentFlags().StringVar(&path, "store", "", "Path of the LevelDB store")

	var prefix string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored signatures with their fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			sigs, err := s.Signatures(prefix)
			if err != nil {
				return err
			}
			for _, sig := range sigs {
				fp, err := s.Fingerprint(sig)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", fp[:16], sig)
			}
			return nil
		},
	}
	list.Flags().StringVar(&prefix, "prefix", "", "Only signatures starting with this prefix")

	var format formatFlags
	show := &cobra.Command{
		Use:   "show SIGNATURE...",
		Short: "Print stored methods as assembly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			for _, sig := range args {
				m, ok, err := s.ReadMethod(sig)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is not in the store", sig)
				}
				text, err := smalifmt.Format(m, format.config())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
			return nil
		},
	}
	format.register(show)

	var importPrefix string
	imp := &cobra.Command{
		Use:   "import FILE...",
		Short: "Store every method of the given files unmodified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args)
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			n, err := s.Import(cat, importPrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d methods\n", n)
			return nil
		},
	}
	imp.Flags().StringVar(&importPrefix, "prefix", "", "Only signatures starting with this prefix")

	cmd.AddCommand(list, show, imp)
	return cmd
}
