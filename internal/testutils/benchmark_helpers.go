package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// BenchmarkHelper provides utilities for benchmarking driver/parser
// operations over generated source files.
type BenchmarkHelper struct {
	TempDir string
}

// NewBenchmarkHelper creates a new benchmark helper.
func NewBenchmarkHelper(b *testing.B) *BenchmarkHelper {
	b.Helper()
	return &BenchmarkHelper{
		TempDir: b.TempDir(),
	}
}

// CreateBenchmarkFiles creates multiple generated .cpp files for
// benchmarking, each holding one @safe function with the given number of
// statements.
func (h *BenchmarkHelper) CreateBenchmarkFiles(b *testing.B, count int, statementsPerFile int) []string {
	b.Helper()
	var files []string

	for i := 0; i < count; i++ {
		content := h.generateFileContent(statementsPerFile)
		fileName := fmt.Sprintf("bench_file_%d.cpp", i)
		filePath := filepath.Join(h.TempDir, fileName)

		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			b.Fatalf("failed to create benchmark file: %v", err)
		}

		files = append(files, filePath)
	}

	return files
}

// generateFileContent generates a single @safe function with the given
// number of statements, enough to exercise the ownership walker's per-
// statement cost under benchmarking.
func (h *BenchmarkHelper) generateFileContent(statements int) string {
	content := "// @safe\nint benchmark_function(int seed) {\n    int total = seed;\n"
	for i := 0; i < statements; i++ {
		content += fmt.Sprintf("    total = total + %d;\n", i)
	}
	content += "    return total;\n}\n"
	return content
}

// CreateLargeTestFile creates a single large generated source file.
func (h *BenchmarkHelper) CreateLargeTestFile(b *testing.B, statements int) string {
	b.Helper()
	content := h.generateFileContent(statements)
	filePath := filepath.Join(h.TempDir, "large_file.cpp")

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		b.Fatalf("failed to create large test file: %v", err)
	}

	return filePath
}

// TimeOperation measures the time taken for an operation.
func TimeOperation(operation func()) time.Duration {
	start := time.Now()
	operation()
	return time.Since(start)
}

// MemoryUsage provides a simple way to measure memory before and after an
// operation.
type MemoryUsage struct {
	Before uint64
	After  uint64
}

// StartMemoryMeasurement begins memory usage measurement.
func StartMemoryMeasurement() *MemoryUsage {
	return &MemoryUsage{
		Before: getCurrentMemoryUsage(),
	}
}

// StopMemoryMeasurement completes memory usage measurement.
func (m *MemoryUsage) StopMemoryMeasurement() {
	m.After = getCurrentMemoryUsage()
}

// Delta returns the memory usage difference.
func (m *MemoryUsage) Delta() int64 {
	return int64(m.After) - int64(m.Before)
}

func getCurrentMemoryUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}
