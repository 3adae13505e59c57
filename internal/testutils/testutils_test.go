package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

func TestCreateTempDir(t *testing.T) {
	dir := CreateTempDir(t)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("expected temp directory to be created, but it doesn't exist")
	}
}

func TestCreateTestFile(t *testing.T) {
	dir := CreateTempDir(t)
	content := "// @safe\nint main() { return 0; }\n"

	filePath := CreateTestFile(t, dir, "test.cpp", content)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Errorf("expected test file to be created, but it doesn't exist")
	}

	readContent, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("failed to read test file: %v", err)
	}

	if string(readContent) != content {
		t.Errorf("expected file content %s, got %s", content, string(readContent))
	}
}

func TestCreateTestFileWithSubdirectory(t *testing.T) {
	dir := CreateTempDir(t)
	content := "test content"

	filePath := CreateTestFile(t, dir, "subdir/test.txt", content)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Errorf("expected test file in subdirectory to be created, but it doesn't exist")
	}

	subDir := filepath.Dir(filePath)
	if _, err := os.Stat(subDir); os.IsNotExist(err) {
		t.Errorf("expected subdirectory to be created, but it doesn't exist")
	}
}

func TestCreateTestConfig(t *testing.T) {
	cfg := CreateTestConfig()

	if cfg.Output.JSON.Path != "./test-report.json" {
		t.Errorf("expected JSON path './test-report.json', got %s", cfg.Output.JSON.Path)
	}
	if cfg.Output.Format != "console" {
		t.Errorf("expected default output format 'console', got %s", cfg.Output.Format)
	}
}

func TestAssertViolationCount(t *testing.T) {
	violations := []diagnostics.Violation{
		CreateSampleViolation(diagnostics.KindPointerSafety, "file1.cpp", 1),
		CreateSampleViolation(diagnostics.KindUseAfterMove, "file2.cpp", 2),
	}

	AssertViolationCount(t, violations, 2)
}

func TestAssertViolationKind(t *testing.T) {
	violation := CreateSampleViolation(diagnostics.KindPointerSafety, "test.cpp", 1)
	AssertViolationKind(t, violation, diagnostics.KindPointerSafety)
}

func TestCreateSampleViolation(t *testing.T) {
	kind := diagnostics.KindBorrowConflict
	file := "test.cpp"
	line := 42

	violation := CreateSampleViolation(kind, file, line)

	if violation.Kind != kind {
		t.Errorf("expected violation kind %s, got %s", kind, violation.Kind)
	}
	if violation.Location.File != file {
		t.Errorf("expected violation file %s, got %s", file, violation.Location.File)
	}
	if violation.Location.Line != line {
		t.Errorf("expected violation line %d, got %d", line, violation.Location.Line)
	}
	if violation.Message == "" {
		t.Error("expected violation message to be set")
	}
}

func TestFileExists(t *testing.T) {
	dir := CreateTempDir(t)
	filePath := CreateTestFile(t, dir, "exists.txt", "content")

	if !FileExists(t, filePath) {
		t.Error("expected FileExists to return true for existing file")
	}

	nonExistentPath := filepath.Join(dir, "does_not_exist.txt")
	if FileExists(t, nonExistentPath) {
		t.Error("expected FileExists to return false for non-existing file")
	}
}

func TestAssertFileExists(t *testing.T) {
	dir := CreateTempDir(t)
	filePath := CreateTestFile(t, dir, "exists.txt", "content")

	AssertFileExists(t, filePath)
}

func TestAssertFileNotExists(t *testing.T) {
	dir := CreateTempDir(t)
	nonExistentPath := filepath.Join(dir, "does_not_exist.txt")

	AssertFileNotExists(t, nonExistentPath)
}
