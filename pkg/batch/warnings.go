package batch

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	signatureRe = regexp.MustCompile(`^(L[^;\s]+;->[^\s(]+\([^)]*\)\S+):\s*`)
	addressRe   = regexp.MustCompile(`\b(?:address|at) (\d+)\b`)
)

// FormatWarnings turns interpreter and optimizer warnings into a
// user-facing report.
func FormatWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return "No warnings.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d warning(s):\n", len(warnings))

	for _, w := range warnings {
		loc, rest := deriveLocation(w)
		msg, hint := classifyAndHint(rest)

		fmt.Fprintf(&b, "- %s\n", msg)
		if loc != "" {
			fmt.Fprintf(&b, "  Location: %s\n", loc)
		}
		if hint != "" {
			fmt.Fprintf(&b, "  How to fix: %s\n", hint)
		}
		fmt.Fprintf(&b, "  Details: %s\n", strings.TrimSpace(rest))
	}

	return b.String()
}

// deriveLocation strips leading method signatures and returns the
// innermost one, with the instruction address when the message names one.
func deriveLocation(s string) (loc, rest string) {
	rest = s
	for {
		m := signatureRe.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		loc = m[1]
		rest = rest[len(m[0]):]
	}
	if a := addressRe.FindStringSubmatch(rest); a != nil && loc != "" {
		loc += " @" + a[1]
	}
	return loc, rest
}

func classifyAndHint(s string) (msg, hint string) {
	switch {
	case strings.Contains(s, "visits; marked possibly non-terminating"):
		return "A loop did not settle within the visit budget; the method was only partially explored.",
			"Raise vm.max-address-visits, or seed the loop bounds in 'initial' so the loop can be decided."
	case strings.Contains(s, "never reach an exit"):
		return "Code that, once entered, never leaves the method; the graph is partial.", ""
	case strings.Contains(s, "exceeds call depth"):
		return "A call chain was deeper than the call depth budget; the innermost call was treated as opaque.",
			"Raise vm.max-call-depth if the callee result matters."
	case strings.Contains(s, "instruction budget"):
		return "The run stopped after its instruction budget; the graph is partial.",
			"Raise vm.max-instruction-evaluations."
	case strings.Contains(s, "time budget"):
		return "The run stopped after its time budget; the graph is partial.",
			"Raise vm.max-execution-time."
	case strings.Contains(s, "unsupported instruction"):
		return "An instruction is not modelled; its result is unknown.", ""
	case strings.Contains(s, "static initializer"):
		return "A static initializer could not be interpreted; static fields of its class are unknown.", ""
	case strings.Contains(s, "pass limit"):
		return "The optimizer stopped at its pass limit before reaching a fixed point.",
			"Raise optimize.max-passes."
	case strings.Contains(s, "execution cancelled"):
		return "The run was cancelled.", ""
	}
	return "Warning.", ""
}
