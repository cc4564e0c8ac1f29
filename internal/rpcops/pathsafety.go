package rpcops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapesCWD is returned by every path-taking operation when the
// given path resolves outside the Agent's current working directory. The
// Agent does not chroot; this is a soft check against accidental abuse, not
// a security boundary.
var ErrPathEscapesCWD = errors.New("Path must be a sub-directory of the current working directory")

// ensureRelative enforces path safety and returns the cleaned path to
// operate on. A relative path is always accepted as-is (it may still
// escape via "../", which mirrors the leniency of the original
// implementation this is ported from); an absolute path is accepted only
// when it lies under the process's current working directory.
func ensureRelative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving current working directory: %w", err)
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrPathEscapesCWD
	}
	return path, nil
}

// readLines reads path and splits it into lines, preserving a trailing
// newline as an extra empty element so that re-joining with "\n" round
// trips the original byte content.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	hasTrailingNewline := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}
	if hasTrailingNewline {
		lines = append(lines, "")
	}
	return lines, nil
}

func writeLines(path string, lines []string) (string, error) {
	content := strings.Join(lines, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return content, nil
}

// resolveStartLine applies the shared 1-based line coercion: 0 is treated
// as "top of file" (index 0); anything past the end of the file is an
// error with the exact message the specification fixes.
func resolveStartLine(lineCount int, startLine int) (int, error) {
	if startLine == 0 {
		return 0, nil
	}
	idx := startLine - 1
	if idx >= lineCount {
		return 0, errors.New("Start line is out of index")
	}
	return idx, nil
}

// resolveEndLine applies the shared rule for an optional end line: absent
// means "same as start" (a single-line operation); past the end of the
// file clamps to the last line.
func resolveEndLine(lineCount int, startIdx int, endLine *int) int {
	if endLine == nil {
		return startIdx
	}
	if *endLine >= lineCount {
		return lineCount - 1
	}
	return *endLine - 1
}

// resolveInsertionPoint applies the single-point analog of the above rule:
// 0 means prepend, past the end of the file means append.
func resolveInsertionPoint(lineCount int, line int) int {
	switch {
	case line == 0:
		return 0
	case line > lineCount:
		return lineCount
	default:
		return line - 1
	}
}
