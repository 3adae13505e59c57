package reporters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ericfisherdev/rustycheck/internal/config"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// JSONReporter writes violations to a JSON file for machine consumption,
// the non-line-oriented counterpart to ConsoleReporter (spec §6.1 only
// mandates the line-oriented form; JSON is this project's supplement for
// CI integration, the same role the teacher's JSON export serves).
type JSONReporter struct {
	cfg *config.JSONConfig
}

// NewJSONReporter creates a new JSON reporter with the given configuration.
func NewJSONReporter(cfg *config.JSONConfig) *JSONReporter {
	if cfg == nil {
		cfg = &config.JSONConfig{Enabled: true, Path: "./reports/violations.json", PrettyPrint: true}
	}
	return &JSONReporter{cfg: cfg}
}

// Format returns the format name of this reporter.
func (r *JSONReporter) Format() string { return "json" }

// jsonReport is the on-disk shape of a JSON violation report.
type jsonReport struct {
	TotalViolations int             `json:"total_violations"`
	BySeverityKind  map[string]int  `json:"by_kind"`
	Violations      []jsonViolation `json:"violations"`
}

type jsonViolation struct {
	Kind     string   `json:"kind"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Entities []string `json:"entities,omitempty"`
}

// Generate writes violations to the configured path, skipping entirely
// when the JSON reporter is disabled.
func (r *JSONReporter) Generate(violations []diagnostics.Violation) error {
	if !r.cfg.Enabled {
		return nil
	}

	dir := filepath.Dir(r.cfg.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	report := jsonReport{
		TotalViolations: len(violations),
		BySeverityKind:  make(map[string]int),
		Violations:      make([]jsonViolation, len(violations)),
	}
	for i, v := range violations {
		report.BySeverityKind[string(v.Kind)]++
		report.Violations[i] = jsonViolation{
			Kind:     string(v.Kind),
			File:     v.Location.File,
			Line:     v.Location.Line,
			Message:  v.Message,
			Entities: v.Entities,
		}
	}

	var data []byte
	var err error
	if r.cfg.PrettyPrint {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	if err := os.WriteFile(r.cfg.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}
