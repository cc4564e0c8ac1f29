package rpcops

import (
	"os"
	"testing"
)

// chdirTemp creates a temp directory, chdirs into it for the duration of the
// test, and restores the original working directory on cleanup. Every
// fs-touching operation in this package resolves relative paths against the
// process's current directory, so tests exercise them from a scratch
// directory rather than the source tree.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("restoring cwd: %v", err)
		}
	})
	return dir
}
