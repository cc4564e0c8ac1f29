package rpcops

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestListFilesRespectsMaxDepth(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "top.txt", "")
	mustMkdirAll(t, "a")
	mustWriteFile(t, "a/mid.txt", "")
	mustMkdirAll(t, "a/b")
	mustWriteFile(t, "a/b/deep.txt", "")

	resp, err := handleListFiles(context.Background(), &ListFilesRequest{Path: ".", MaxDepth: intPtr(1)})
	if err != nil {
		t.Fatalf("handleListFiles: %v", err)
	}

	sort.Strings(resp.Files)
	want := []string{filepath.Join("a", "mid.txt"), "top.txt"}
	sort.Strings(want)
	if len(resp.Files) != len(want) {
		t.Fatalf("Files = %v, want %v", resp.Files, want)
	}
	for i := range want {
		if resp.Files[i] != want[i] {
			t.Fatalf("Files = %v, want %v", resp.Files, want)
		}
	}

	// a/b is reachable at depth 1 so it is descended into; its only entry
	// (a/b/deep.txt) lies past the cutoff and is dropped quietly.
	if len(resp.Untraversed) != 0 {
		t.Fatalf("Untraversed = %v, want none", resp.Untraversed)
	}
}

func TestListFilesMarksDeepDirectoriesUntraversed(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "top.txt", "")
	mustMkdirAll(t, "a")
	mustWriteFile(t, "a/mid.txt", "")
	mustMkdirAll(t, "a/b")

	resp, err := handleListFiles(context.Background(), &ListFilesRequest{Path: ".", MaxDepth: intPtr(0)})
	if err != nil {
		t.Fatalf("handleListFiles: %v", err)
	}

	if len(resp.Files) != 1 || resp.Files[0] != "top.txt" {
		t.Fatalf("Files = %v, want [top.txt]", resp.Files)
	}
	if len(resp.Untraversed) != 1 || resp.Untraversed[0] != filepath.Join("a", "b") {
		t.Fatalf("Untraversed = %v, want [a/b]", resp.Untraversed)
	}
}

func TestListFilesIgnoresHidden(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "visible.txt", "")
	mustWriteFile(t, ".hidden.txt", "")
	mustMkdirAll(t, ".hiddendir")
	mustWriteFile(t, ".hiddendir/x.txt", "")

	resp, err := handleListFiles(context.Background(), &ListFilesRequest{Path: ".", IgnoreHidden: boolPtr(true)})
	if err != nil {
		t.Fatalf("handleListFiles: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0] != "visible.txt" {
		t.Fatalf("Files = %v, want [visible.txt]", resp.Files)
	}
}

func TestListFilesRejectsNonDirectory(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "plain.txt", "hi")

	_, err := handleListFiles(context.Background(), &ListFilesRequest{Path: "plain.txt"})
	if err == nil {
		t.Fatal("expected an error for a file path")
	}
}

func TestListFilesRejectsMissingPath(t *testing.T) {
	chdirTemp(t)

	_, err := handleListFiles(context.Background(), &ListFilesRequest{Path: "does-not-exist"})
	if err == nil {
		t.Fatal("expected an error for a missing path")
	}
}

func TestCreateDirectoryCreatesNested(t *testing.T) {
	chdirTemp(t)

	resp, err := handleCreateDirectory(context.Background(), &CreateDirectoryRequest{Path: "a/b/c"})
	if err != nil {
		t.Fatalf("handleCreateDirectory: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected Success = true")
	}
	if info, err := os.Stat("a/b/c"); err != nil || !info.IsDir() {
		t.Fatalf("a/b/c was not created as a directory: %v", err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if dir := filepath.Dir(path); dir != "." {
		mustMkdirAll(t, dir)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", path, err)
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
