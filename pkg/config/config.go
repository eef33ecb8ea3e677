// Package config loads interpreter and optimizer settings from a YAML or
// TOML file. Keys that are absent keep their defaults.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/speakeasy-api/simplify/optimize"
	"github.com/speakeasy-api/simplify/smalivm"
)

// File is the on-disk layout.
type File struct {
	VM       VM       `yaml:"vm" toml:"vm"`
	Optimize Optimize `yaml:"optimize" toml:"optimize"`
	Log      Log      `yaml:"log" toml:"log"`
	Workers  int      `yaml:"workers" toml:"workers"`
	Store    string   `yaml:"store" toml:"store"`
}

// VM mirrors smalivm.Options.
type VM struct {
	MaxAddressVisits          *int    `yaml:"max-address-visits" toml:"max-address-visits"`
	MaxContextsPerNode        *int    `yaml:"max-contexts-per-node" toml:"max-contexts-per-node"`
	MaxCallDepth              *int    `yaml:"max-call-depth" toml:"max-call-depth"`
	MaxInstructionEvaluations *int    `yaml:"max-instruction-evaluations" toml:"max-instruction-evaluations"`
	MaxExecutionTime          *string `yaml:"max-execution-time" toml:"max-execution-time"`

	InterpretCallees          *bool `yaml:"interpret-callees" toml:"interpret-callees"`
	EmulateJDK                *bool `yaml:"emulate-jdk" toml:"emulate-jdk"`
	RunStaticInitializers     *bool `yaml:"run-static-initializers" toml:"run-static-initializers"`
	OpaqueCallsMayThrow       *bool `yaml:"opaque-calls-may-throw" toml:"opaque-calls-may-throw"`
	OpaqueCallsClobberStatics *bool `yaml:"opaque-calls-clobber-statics" toml:"opaque-calls-clobber-statics"`
	EnableWarnings            *bool `yaml:"warnings" toml:"warnings"`
}

// Optimize mirrors optimize.Options.
type Optimize struct {
	MaxPasses           *int  `yaml:"max-passes" toml:"max-passes"`
	ConstantPropagation *bool `yaml:"constant-propagation" toml:"constant-propagation"`
	UnreachableCode     *bool `yaml:"unreachable-code" toml:"unreachable-code"`
	DeadCode            *bool `yaml:"dead-code" toml:"dead-code"`
	Peephole            *bool `yaml:"peephole" toml:"peephole"`
}

// Log configures the shared logger.
type Log struct {
	Level      string `yaml:"level" toml:"level"`
	TimeLayout string `yaml:"time-layout" toml:"time-layout"` // strftime; "none" disables timestamps
}

// Load reads path and decodes it by extension: .yaml, .yml or .toml.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = Decode(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Decode decodes YAML, rejecting unknown keys.
func Decode(data []byte, f *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks the values that have a restricted range.
func (f *File) Validate() error {
	positive := map[string]*int{
		"vm.max-address-visits":          f.VM.MaxAddressVisits,
		"vm.max-contexts-per-node":       f.VM.MaxContextsPerNode,
		"vm.max-call-depth":              f.VM.MaxCallDepth,
		"vm.max-instruction-evaluations": f.VM.MaxInstructionEvaluations,
		"optimize.max-passes":            f.Optimize.MaxPasses,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	if f.VM.MaxExecutionTime != nil {
		if _, err := time.ParseDuration(*f.VM.MaxExecutionTime); err != nil {
			return fmt.Errorf("vm.max-execution-time: %w", err)
		}
	}
	if f.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", f.Workers)
	}
	switch strings.ToLower(f.Log.Level) {
	case "", "error", "warn", "warning", "info", "debug", "off":
	default:
		return fmt.Errorf("unknown log level %q", f.Log.Level)
	}
	return nil
}

// Apply overlays the configured values on opts.
func (f *File) Apply(opts *optimize.Options) {
	vm := &opts.VM
	setInt(&vm.MaxAddressVisits, f.VM.MaxAddressVisits)
	setInt(&vm.MaxContextsPerNode, f.VM.MaxContextsPerNode)
	setInt(&vm.MaxCallDepth, f.VM.MaxCallDepth)
	setInt(&vm.MaxInstructionEvaluations, f.VM.MaxInstructionEvaluations)
	if f.VM.MaxExecutionTime != nil {
		if d, err := time.ParseDuration(*f.VM.MaxExecutionTime); err == nil {
			vm.MaxExecutionTime = d
		}
	}
	setBool(&vm.InterpretCallees, f.VM.InterpretCallees)
	setBool(&vm.EmulateJDK, f.VM.EmulateJDK)
	setBool(&vm.RunStaticInitializers, f.VM.RunStaticInitializers)
	setBool(&vm.OpaqueCallsMayThrow, f.VM.OpaqueCallsMayThrow)
	setBool(&vm.OpaqueCallsClobberStatics, f.VM.OpaqueCallsClobberStatics)
	setBool(&vm.EnableWarnings, f.VM.EnableWarnings)

	setInt(&opts.MaxOptimizationPasses, f.Optimize.MaxPasses)
	setBool(&opts.ConstantPropagation, f.Optimize.ConstantPropagation)
	setBool(&opts.UnreachableCode, f.Optimize.UnreachableCode)
	setBool(&opts.DeadCode, f.Optimize.DeadCode)
	setBool(&opts.Peephole, f.Optimize.Peephole)

	if f.Log.Level != "" || f.Log.TimeLayout != "" {
		opts.Logger = f.Logger(os.Stderr)
		vm.Logger = opts.Logger
	}
}

// Options returns the default options with the file applied.
func (f *File) Options() optimize.Options {
	opts := optimize.DefaultOptions()
	f.Apply(&opts)
	return opts
}

// Logger builds the configured logger writing to w.
func (f *File) Logger(w io.Writer) smalivm.Logger {
	level := strings.ToLower(f.Log.Level)
	if level == "off" {
		return smalivm.NopLogger()
	}
	switch f.Log.TimeLayout {
	case "":
		return smalivm.NewLogger(smalivm.ParseLogLevel(level), w)
	case "none":
		return smalivm.NewLoggerWithLayout(smalivm.ParseLogLevel(level), w, "")
	default:
		return smalivm.NewLoggerWithLayout(smalivm.ParseLogLevel(level), w, f.Log.TimeLayout)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
