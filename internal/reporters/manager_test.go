package reporters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/config"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ConsoleOnlyByDefault(t *testing.T) {
	cfg := config.GetDefaultConfig()
	m := NewManager(cfg)
	require.NoError(t, m.Generate(nil))
	_, err := os.Stat(cfg.Output.JSON.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_JSONRunsWhenFormatIsJSON(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Output.Format = "json"
	cfg.Output.JSON.Enabled = true
	cfg.Output.JSON.Path = filepath.Join(t.TempDir(), "out.json")

	m := NewManager(cfg)
	require.NoError(t, m.Generate([]diagnostics.Violation{{Message: "x"}}))

	_, err := os.Stat(cfg.Output.JSON.Path)
	assert.NoError(t, err)
}
