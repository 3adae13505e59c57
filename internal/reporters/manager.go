package reporters

import (
	"github.com/ericfisherdev/rustycheck/internal/config"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// Reporter is the contract every output format implements.
type Reporter interface {
	Format() string
	Generate(violations []diagnostics.Violation) error
}

// Manager coordinates the reporters a Config selects: the console reporter
// always runs (spec §6.1's line-oriented output is the contract every
// invocation must produce), and the JSON reporter runs in addition when
// configured.
type Manager struct {
	console *ConsoleReporter
	json    *JSONReporter
	cfg     *config.Config
}

// NewManager builds a Manager from a loaded Config.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		console: NewConsoleReporter(cfg.Logging.Verbose),
		json:    NewJSONReporter(&cfg.Output.JSON),
		cfg:     cfg,
	}
}

// Generate runs every configured reporter over one run's violations. The
// console reporter always runs; the JSON reporter runs too when
// Output.Format is "json" or Output.JSON.Enabled is set directly.
func (m *Manager) Generate(violations []diagnostics.Violation) error {
	if err := m.console.Generate(violations); err != nil {
		return err
	}
	if m.cfg.Output.Format == "json" || m.cfg.Output.JSON.Enabled {
		reporter := m.json
		if !m.cfg.Output.JSON.Enabled {
			jsonCfg := m.cfg.Output.JSON
			jsonCfg.Enabled = true
			reporter = NewJSONReporter(&jsonCfg)
		}
		if err := reporter.Generate(violations); err != nil {
			return err
		}
	}
	return nil
}
