package rpcops

import (
	"context"
	"strings"
)

type InsertContentRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
	Line    int    `json:"line"`
}

type InsertContentResponse struct {
	Content string `json:"content"`
}

func init() {
	RegisterOp("InsertContent", handleInsertContent)
}

func handleInsertContent(_ context.Context, req *InsertContentRequest) (*InsertContentResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	at := resolveInsertionPoint(len(lines), req.Line)
	lines = append(lines, "")
	copy(lines[at+1:], lines[at:])
	lines[at] = req.Content

	content, err := writeLines(path, lines)
	if err != nil {
		return nil, err
	}
	return &InsertContentResponse{Content: content}, nil
}

type ReplaceContentRequest struct {
	Path      string `json:"path" validate:"required"`
	Content   string `json:"content"`
	StartLine int    `json:"start_line"`
	EndLine   *int   `json:"end_line,omitempty"`
}

type ReplaceContentResponse struct {
	Content string `json:"content"`
}

func init() {
	RegisterOp("ReplaceContent", handleReplaceContent)
}

func handleReplaceContent(_ context.Context, req *ReplaceContentRequest) (*ReplaceContentResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	start, err := resolveStartLine(len(lines), req.StartLine)
	if err != nil {
		return nil, err
	}
	end := resolveEndLine(len(lines), start, req.EndLine)

	newLines := strings.Split(req.Content, "\n")
	replaced := make([]string, 0, len(lines)-(end-start+1)+len(newLines))
	replaced = append(replaced, lines[:start]...)
	replaced = append(replaced, newLines...)
	replaced = append(replaced, lines[end+1:]...)

	content, err := writeLines(path, replaced)
	if err != nil {
		return nil, err
	}
	return &ReplaceContentResponse{Content: content}, nil
}

type DeleteContentRequest struct {
	Path      string `json:"path" validate:"required"`
	StartLine int    `json:"start_line"`
	EndLine   *int   `json:"end_line,omitempty"`
}

type DeleteContentResponse struct {
	Content string `json:"content"`
}

func init() {
	RegisterOp("DeleteContent", handleDeleteContent)
}

func handleDeleteContent(_ context.Context, req *DeleteContentRequest) (*DeleteContentResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	start, err := resolveStartLine(len(lines), req.StartLine)
	if err != nil {
		return nil, err
	}
	end := resolveEndLine(len(lines), start, req.EndLine)

	remaining := make([]string, 0, len(lines)-(end-start+1))
	remaining = append(remaining, lines[:start]...)
	remaining = append(remaining, lines[end+1:]...)

	content, err := writeLines(path, remaining)
	if err != nil {
		return nil, err
	}
	return &DeleteContentResponse{Content: content}, nil
}
