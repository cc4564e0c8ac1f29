package rpcops

import (
	"reflect"
	"testing"
)

func TestEnsureRelativeAcceptsRelativePaths(t *testing.T) {
	got, err := ensureRelative("a/b/c.txt")
	if err != nil {
		t.Fatalf("ensureRelative: %v", err)
	}
	if got != "a/b/c.txt" {
		t.Fatalf("got %q, want a/b/c.txt", got)
	}
}

func TestEnsureRelativeAcceptsAbsolutePathUnderCWD(t *testing.T) {
	dir := chdirTemp(t)
	mustWriteFile(t, "x.txt", "")

	got, err := ensureRelative(dir + "/x.txt")
	if err != nil {
		t.Fatalf("ensureRelative: %v", err)
	}
	if got != dir+"/x.txt" {
		t.Fatalf("got %q, want %q", got, dir+"/x.txt")
	}
}

func TestEnsureRelativeRejectsPathOutsideCWD(t *testing.T) {
	chdirTemp(t)

	_, err := ensureRelative("/etc/passwd")
	if err != ErrPathEscapesCWD {
		t.Fatalf("err = %v, want ErrPathEscapesCWD", err)
	}
}

func TestReadWriteLinesRoundTripsTrailingNewline(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "trail.txt", "a\nb\nc\n")

	lines, err := readLines("trail.txt")
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	want := []string{"a", "b", "c", ""}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}

	content, err := writeLines("trail.txt", lines)
	if err != nil {
		t.Fatalf("writeLines: %v", err)
	}
	if content != "a\nb\nc\n" {
		t.Fatalf("content = %q, want %q", content, "a\nb\nc\n")
	}
}

func TestReadLinesNoTrailingNewline(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "notrail.txt", "a\nb\nc")

	lines, err := readLines("notrail.txt")
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
}

func TestReadLinesEmptyFile(t *testing.T) {
	chdirTemp(t)
	mustWriteFile(t, "empty.txt", "")

	lines, err := readLines("empty.txt")
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("lines = %v, want empty", lines)
	}
}

func TestResolveStartLineZeroMeansTopOfFile(t *testing.T) {
	idx, err := resolveStartLine(5, 0)
	if err != nil {
		t.Fatalf("resolveStartLine: %v", err)
	}
	if idx != 0 {
		t.Fatalf("idx = %d, want 0", idx)
	}
}

func TestResolveStartLineOutOfIndex(t *testing.T) {
	_, err := resolveStartLine(3, 4)
	if err == nil || err.Error() != "Start line is out of index" {
		t.Fatalf("err = %v, want %q", err, "Start line is out of index")
	}
}

func TestResolveEndLineClampsToLastIndex(t *testing.T) {
	end := resolveEndLine(3, 0, intp(99))
	if end != 2 {
		t.Fatalf("end = %d, want 2", end)
	}
}

func TestResolveInsertionPointBoundaries(t *testing.T) {
	if got := resolveInsertionPoint(5, 0); got != 0 {
		t.Fatalf("line=0: got %d, want 0", got)
	}
	if got := resolveInsertionPoint(5, 99); got != 5 {
		t.Fatalf("line=99: got %d, want 5", got)
	}
	if got := resolveInsertionPoint(5, 3); got != 2 {
		t.Fatalf("line=3: got %d, want 2", got)
	}
}
