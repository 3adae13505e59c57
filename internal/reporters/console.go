package reporters

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// ConsoleReporter prints violations to the console in the exact form
// spec §6.1 defines: one `<file>:<line> - <message>` line per violation,
// followed by a summary line. Verbose mode adds a per-kind breakdown
// after that required output, never in place of it.
type ConsoleReporter struct {
	verbose bool
	output  io.Writer
}

// NewConsoleReporter creates a new console reporter writing to os.Stdout.
func NewConsoleReporter(verbose bool) *ConsoleReporter {
	return &ConsoleReporter{verbose: verbose, output: os.Stdout}
}

// Format returns the format name of this reporter.
func (c *ConsoleReporter) Format() string { return "console" }

// Generate prints every violation, then the spec §6.1 summary line.
func (c *ConsoleReporter) Generate(violations []diagnostics.Violation) error {
	for _, v := range violations {
		fmt.Fprintf(c.output, "%s:%d - %s\n", v.Location.File, v.Location.Line, v.Message)
	}

	if len(violations) == 0 {
		fmt.Fprintln(c.output, "no violations found")
	} else {
		fmt.Fprintf(c.output, "Found %d violation(s)\n", len(violations))
	}

	if c.verbose && len(violations) > 0 {
		c.printKindBreakdown(violations)
	}
	return nil
}

func (c *ConsoleReporter) printKindBreakdown(violations []diagnostics.Violation) {
	counts := make(map[diagnostics.Kind]int)
	for _, v := range violations {
		counts[v.Kind]++
	}

	var kinds []diagnostics.Kind
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return counts[kinds[i]] > counts[kinds[j]] })

	fmt.Fprintln(c.output, "\nBy kind:")
	for _, k := range kinds {
		fmt.Fprintf(c.output, "  %-20s: %d\n", k, counts[k])
	}
}
