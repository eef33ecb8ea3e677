// Command simplify optimizes methods of Dalvik assembly files by executing
// them symbolically.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	dex "github.com/speakeasy-api/simplify"
	"github.com/speakeasy-api/simplify/optimize"
	"github.com/speakeasy-api/simplify/pkg/config"
)

var (
	Version = "dev"
	Commit  = "none"
)

// globals holds the persistent flags.
type globals struct {
	configPath   string
	logLevel     string
	otlpEndpoint string

	file     *config.File
	shutdown func(context.Context) error
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "simplify",
		Short:         "Symbolic execution and optimization of Dalvik assembly",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.shutdown == nil {
				return nil
			}
			return g.shutdown(cmd.Context())
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: error, warn, info, debug or off")
	rootCmd.PersistentFlags().StringVar(&g.otlpEndpoint, "otlp-endpoint", "", "Export traces over OTLP/HTTP to this endpoint (e.g. localhost:4318)")

	rootCmd.AddCommand(
		newOptimizeCmd(g),
		newBatchCmd(g),
		newGraphCmd(g),
		newDisasmCmd(g),
		newStoreCmd(g),
	)
	return rootCmd
}

func (g *globals) setup(ctx context.Context) error {
	g.file = &config.File{}
	if g.configPath != "" {
		f, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		g.file = f
	}
	if g.logLevel != "" {
		g.file.Log.Level = g.logLevel
		if err := g.file.Validate(); err != nil {
			return err
		}
	}
	if g.otlpEndpoint != "" {
		shutdown, err := initTracing(ctx, g.otlpEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
		g.shutdown = shutdown
	}
	return nil
}

// options returns the optimizer options with the config file applied.
// Without a configured level the CLI only reports errors.
func (g *globals) options() optimize.Options {
	opts := g.file.Options()
	if opts.Logger == nil {
		opts.LogLevel = "error"
		opts.VM.LogLevel = "error"
	}
	return opts
}

// loadCatalog parses every file into one catalog.
func loadCatalog(paths []string) (*dex.Catalog, error) {
	sources := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		sources = append(sources, string(data))
	}
	cat, err := dex.ParseCatalog(sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", strings.Join(paths, ", "), err)
	}
	return cat, nil
}
