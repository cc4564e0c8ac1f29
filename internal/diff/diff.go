package diff

import (
	"regexp"
	"strings"
)

var normalDiffHeaderRE = regexp.MustCompile(`^\d+(,\d+)?[acd]\d+(,\d+)?`)

// FileDiff is a parsed unified diff against one file, made up of one or
// more hunks applied in order.
type FileDiff struct {
	OriginalFilename string
	NewFilename      string
	Hunks            []*Hunk
}

// ParseFileDiff parses a restricted unified diff: optional "--- "/"+++ "
// file headers followed by one or more "@@ ... @@" hunks. A classic normal
// diff (e.g. "1,3c1,3") is rejected with a NormalDiff ParseError.
func ParseFileDiff(input string) (*FileDiff, error) {
	lines := splitLines(input)

	var originalFilename, newFilename string
	var hunks []*Hunk
	var current []string

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		h, err := ParseHunkLines(current)
		if err != nil {
			return err
		}
		hunks = append(hunks, h)
		current = nil
		return nil
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "--- "):
			originalFilename = line[len("--- "):]
		case strings.HasPrefix(line, "+++ "):
			newFilename = line[len("+++ "):]
		case strings.HasPrefix(line, "@@ "):
			if err := flush(); err != nil {
				return nil, err
			}
			current = append(current, line)
		case len(current) == 0 || normalDiffHeaderRE.MatchString(line):
			return nil, &ParseError{Kind: NormalDiff}
		default:
			current = append(current, line)
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return &FileDiff{
		OriginalFilename: originalFilename,
		NewFilename:      newFilename,
		Hunks:            hunks,
	}, nil
}

// Apply runs every hunk, in order, against a copy of originalLines and
// returns the resulting line buffer. The input slice is never mutated.
func (f *FileDiff) Apply(originalLines []string) ([]string, error) {
	fileLines := make([]string, len(originalLines))
	copy(fileLines, originalLines)

	for _, h := range f.Hunks {
		if err := h.Apply(&fileLines); err != nil {
			return nil, err
		}
	}

	return fileLines, nil
}
