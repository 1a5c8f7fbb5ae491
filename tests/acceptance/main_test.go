package acceptance

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// binary is the headelf binary under test, built with
// go build -o bin/headelf ./cmd/headelf.
var binary = "../../bin/headelf"

// TestMain runs setup and teardown for acceptance tests
func TestMain(m *testing.M) {
	if p := os.Getenv("HEADELF_BIN"); p != "" {
		binary = p
	}
	abs, err := filepath.Abs(binary)
	if err == nil {
		binary = abs
	}
	if _, err := os.Stat(binary); err != nil {
		fmt.Fprintf(os.Stderr, "skipping acceptance tests: %s not found\n", binary)
		os.Exit(0)
	}

	code := m.Run()
	os.Exit(code)
}
