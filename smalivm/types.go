package smalivm

import (
	"fmt"
	"strings"
	"time"

	dex "github.com/speakeasy-api/simplify"
)

// ClassCatalog resolves classes and methods. Implementations must be safe
// for concurrent readers; dex.Catalog is one.
type ClassCatalog interface {
	Class(name string) (*dex.Class, bool)
	Method(sig string) (*dex.Method, bool)
	IsAssignable(from, to string) (assignable, known bool)
	ResolveVirtual(ref dex.MethodRef, receiver string) (*dex.Method, bool)
	HasOverride(ref dex.MethodRef) bool
}

// InitialState seeds the entry context. Registers are keyed by register
// number; Fields by static field reference LClass;->name:T. Use
// UnknownMarker to leave an entry unknown, StringSeed or ObjectSeed for
// references.
type InitialState struct {
	Registers map[int]Value
	Fields    map[string]Value
}

// Options configures the interpreter.
type Options struct {
	// Budgets
	MaxAddressVisits          int           // Expansions of one address before it is cut off (default: 500)
	MaxContextsPerNode        int           // Distinct contexts kept per address before collapsing (default: 100)
	MaxCallDepth              int           // Nested interpreted calls (default: 8)
	MaxInstructionEvaluations int           // Per run, shared with nested calls (default: 1,000,000)
	MaxExecutionTime          time.Duration // Wall clock per run; zero disables (default: 2m)

	// Behavior flags
	InterpretCallees          bool // Explore callees found in the catalog (default: true)
	EmulateJDK                bool // Run known platform methods natively (default: true)
	RunStaticInitializers     bool // Run <clinit> on first use of a class (default: false)
	OpaqueCallsMayThrow       bool // Opaque calls get an exception edge (default: true)
	OpaqueCallsClobberStatics bool // Opaque calls forget static field values (default: true)
	EnableWarnings            bool // Collect warnings on the graph (default: true)

	// Logging configuration
	LogLevel string // "error", "warn", "info", "debug" (default: "warn")
	Logger   Logger // Overrides LogLevel when set
}

// DefaultOptions returns the default interpreter configuration.
func DefaultOptions() Options {
	return Options{
		MaxAddressVisits:          500,
		MaxContextsPerNode:        100,
		MaxCallDepth:              8,
		MaxInstructionEvaluations: 1_000_000,
		MaxExecutionTime:          2 * time.Minute,

		InterpretCallees:          true,
		EmulateJDK:                true,
		RunStaticInitializers:     false,
		OpaqueCallsMayThrow:       true,
		OpaqueCallsClobberStatics: true,
		EnableWarnings:            true,

		LogLevel: "warn",
	}
}

func (o Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel == "" {
		return NopLogger()
	}
	return NewLogger(ParseLogLevel(o.LogLevel), nil)
}

// BudgetReport records which budgets a run exhausted.
type BudgetReport struct {
	Evaluations          int
	MaxCallDepthReached  int
	VisitCapped          []int // Addresses marked possibly non-terminating
	CallDepthExceeded    int   // Calls treated as opaque because of depth
	InstructionsExceeded bool
	TimeExceeded         bool
}

// Exceeded reports whether any budget cut exploration short.
func (b BudgetReport) Exceeded() bool {
	return len(b.VisitCapped) > 0 || b.CallDepthExceeded > 0 || b.InstructionsExceeded || b.TimeExceeded
}

func (b BudgetReport) String() string {
	var parts []string
	if len(b.VisitCapped) > 0 {
		parts = append(parts, fmt.Sprintf("visit-capped=%v", b.VisitCapped))
	}
	if b.CallDepthExceeded > 0 {
		parts = append(parts, fmt.Sprintf("call-depth=%d", b.CallDepthExceeded))
	}
	if b.InstructionsExceeded {
		parts = append(parts, "instructions")
	}
	if b.TimeExceeded {
		parts = append(parts, "time")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("BudgetReport{evaluations=%d}", b.Evaluations)
	}
	return fmt.Sprintf("BudgetReport{evaluations=%d exceeded: %s}", b.Evaluations, strings.Join(parts, " "))
}
