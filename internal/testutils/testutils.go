// Package testutils provides test utilities and helpers shared across
// rustycheck's package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/config"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// CreateTempDir creates a temporary directory for testing.
func CreateTempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// CreateTestFile creates a test file with the given content, creating any
// missing parent directories.
func CreateTestFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	filePath := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return filePath
}

// CreateTestConfig creates a default configuration with settings common to
// driver/reporters integration tests.
func CreateTestConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Output.JSON.Path = "./test-report.json"
	return cfg
}

// AssertViolationCount checks if the number of violations matches expected.
func AssertViolationCount(t *testing.T, violations []diagnostics.Violation, expected int) {
	t.Helper()
	if len(violations) != expected {
		t.Errorf("expected %d violations, got %d", expected, len(violations))
	}
}

// AssertViolationKind checks if a violation has the expected kind.
func AssertViolationKind(t *testing.T, violation diagnostics.Violation, expectedKind diagnostics.Kind) {
	t.Helper()
	if violation.Kind != expectedKind {
		t.Errorf("expected violation kind %q, got %q", expectedKind, violation.Kind)
	}
}

// CreateSampleViolation creates a sample violation for testing.
func CreateSampleViolation(kind diagnostics.Kind, file string, line int) diagnostics.Violation {
	return diagnostics.Violation{
		Kind:     kind,
		Message:  "sample violation message",
		Location: ast.Location{File: file, Line: line},
	}
}

// FileExists checks if a file exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// AssertFileExists checks if a file exists and fails the test if it doesn't.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if !FileExists(t, path) {
		t.Errorf("expected file %s to exist", path)
	}
}

// AssertFileNotExists checks if a file doesn't exist and fails the test if
// it does.
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if FileExists(t, path) {
		t.Errorf("expected file %s to not exist", path)
	}
}
