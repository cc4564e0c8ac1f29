// Package diff implements the hand-rolled unified-diff parser and applier
// that Agents use to apply LLM-generated patches to a file's line buffer.
// It tolerates the two quirks LLM output regularly introduces: drifting
// line numbers in the hunk header, and a missing single space after the
// leading +/- marker on added lines.
package diff

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRE = regexp.MustCompile(`@@ -(\d+),?(\d*) \+(\d+),?(\d*) @@`)

// ParseError is returned by Hunk/FileDiff parsing.
type ParseError struct {
	Kind ParseErrorKind
}

// ParseErrorKind enumerates the ways a diff's text can fail to parse.
type ParseErrorKind int

const (
	MissingHeader ParseErrorKind = iota
	InvalidHunkHeader
	InvalidLine
	NormalDiff
)

func (e *ParseError) Error() string {
	switch e.Kind {
	case MissingHeader:
		return "Expected hunk header, found nothing"
	case InvalidHunkHeader:
		return "Failed to match hunk header"
	case InvalidLine:
		return "Invalid line in hunk"
	case NormalDiff:
		return "Normal diff not supported, use unified diff format"
	default:
		return "unknown parse error"
	}
}

// ApplyError is returned when a parsed hunk cannot be applied to a line
// buffer.
type ApplyError struct {
	Kind ApplyErrorKind
}

// ApplyErrorKind enumerates the ways application of a hunk can fail.
type ApplyErrorKind int

const (
	ContextNotFound ApplyErrorKind = iota
	OutOfBounds
	RemovedLineMismatch
)

func (e *ApplyError) Error() string {
	switch e.Kind {
	case ContextNotFound:
		return "Failed to find the context position for the hunk"
	case OutOfBounds:
		return "Hunk is out of bounds"
	case RemovedLineMismatch:
		return "Mismatch between the expected removed line and the actual line in the file"
	default:
		return "unknown apply error"
	}
}

// LineKind tags one entry of a hunk's change sequence.
type LineKind int

const (
	Added LineKind = iota
	Removed
	Unchanged
)

// DiffLine is one line of a hunk's change sequence, in original order.
type DiffLine struct {
	Kind LineKind
	Text string
}

// Hunk is one contiguous change region of a unified diff.
type Hunk struct {
	OriginalStart           int
	OriginalLen             int
	NewStart                int
	NewLen                  int
	StartContextLines       []string
	Changes                 []DiffLine
	ChangesHaveLeadingSpace bool
}

// ParseHunk parses one hunk, header line first, from raw text.
func ParseHunk(input string) (*Hunk, error) {
	lines := splitLines(input)
	return ParseHunkLines(lines)
}

// ParseHunkLines parses one hunk from a slice of lines, the first of which
// must be the "@@ ... @@" header.
func ParseHunkLines(lines []string) (*Hunk, error) {
	if len(lines) == 0 {
		return nil, &ParseError{Kind: MissingHeader}
	}
	m := hunkHeaderRE.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, &ParseError{Kind: InvalidHunkHeader}
	}

	originalStart := atoiOr(m[1], 0)
	originalLen := atoiOrDefault(m[2], 1)
	newStart := atoiOr(m[3], 0)
	newLen := atoiOrDefault(m[4], 1)

	var startContext []string
	var changes []DiffLine
	pastStartContext := false
	changesHaveLeadingSpace := true

	for _, line := range lines[1:] {
		if line == "" {
			// A blank raw line is an unchanged/context line with no marker
			// at all; treat it like a space-prefixed context line.
			if pastStartContext {
				changes = append(changes, DiffLine{Kind: Unchanged, Text: ""})
			} else {
				startContext = append(startContext, "")
			}
			continue
		}
		switch line[0] {
		case '+':
			pastStartContext = true
			if len(line) == 1 {
				changes = append(changes, DiffLine{Kind: Added, Text: ""})
			} else {
				if line[1] != ' ' {
					changesHaveLeadingSpace = false
				}
				changes = append(changes, DiffLine{Kind: Added, Text: line[1:]})
			}
		case '-':
			pastStartContext = true
			changes = append(changes, DiffLine{Kind: Removed, Text: line[1:]})
		case ' ':
			if pastStartContext {
				changes = append(changes, DiffLine{Kind: Unchanged, Text: line[1:]})
			} else {
				startContext = append(startContext, line[1:])
			}
		default:
			// Exit on the first line that isn't part of the diff body.
			goto done
		}
	}
done:

	return &Hunk{
		OriginalStart:           originalStart,
		OriginalLen:             originalLen,
		NewStart:                newStart,
		NewLen:                  newLen,
		StartContextLines:       startContext,
		Changes:                 changes,
		ChangesHaveLeadingSpace: changesHaveLeadingSpace,
	}, nil
}

// Apply mutates lines in place, applying this hunk's changes.
func (h *Hunk) Apply(lines *[]string) error {
	var index int
	if len(h.StartContextLines) == 0 {
		index = 0
	} else {
		pos, ok := h.findContextPosition(*lines)
		if !ok {
			return &ApplyError{Kind: ContextNotFound}
		}
		index = pos
	}

	index += len(h.StartContextLines)

	for _, change := range h.Changes {
		switch change.Kind {
		case Added:
			if index > len(*lines) {
				return &ApplyError{Kind: OutOfBounds}
			}
			text := change.Text
			if h.ChangesHaveLeadingSpace && len(text) > 0 {
				text = text[1:]
			} else if h.ChangesHaveLeadingSpace {
				text = ""
			}
			*lines = insertAt(*lines, index, text)
			index++
		case Removed:
			if index >= len(*lines) {
				return &ApplyError{Kind: OutOfBounds}
			}
			removed := (*lines)[index]
			*lines = append((*lines)[:index], (*lines)[index+1:]...)
			if strings.TrimSpace(removed) != strings.TrimSpace(change.Text) {
				return &ApplyError{Kind: RemovedLineMismatch}
			}
		case Unchanged:
			index++
		}
	}

	return nil
}

// findContextPosition locates the index of the hunk's first context line in
// lines, spiralling outward from OriginalStart to tolerate drifted line
// numbers in LLM-produced headers.
func (h *Hunk) findContextPosition(lines []string) (int, bool) {
	context := h.StartContextLines[0]

	if h.OriginalStart >= 0 && h.OriginalStart < len(lines) && lines[h.OriginalStart] == context {
		return h.OriginalStart, true
	}

	distance := 1
	for {
		idxEarlier := h.OriginalStart - distance
		idxAfter := h.OriginalStart + distance

		hasEarlier := idxEarlier >= 0
		if hasEarlier && idxEarlier < len(lines) && lines[idxEarlier] == context {
			return idxEarlier, true
		}
		if idxAfter < len(lines) && lines[idxAfter] == context {
			return idxAfter, true
		}

		if !hasEarlier && idxAfter >= len(lines) {
			break
		}
		distance++
	}

	return 0, false
}

func insertAt(lines []string, index int, text string) []string {
	lines = append(lines, "")
	copy(lines[index+1:], lines[index:])
	lines[index] = text
	return lines
}

func splitLines(input string) []string {
	if input == "" {
		return nil
	}
	return strings.Split(input, "\n")
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atoiOrDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// IsParseError reports whether err is a *ParseError of the given kind.
func IsParseError(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// IsApplyError reports whether err is an *ApplyError of the given kind.
func IsApplyError(err error, kind ApplyErrorKind) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

