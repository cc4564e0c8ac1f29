package rpcops

import (
	"context"

	"github.com/carabiner-tech/agentgateway/internal/diff"
)

// DiffRequest carries a unified diff (as produced by an LLM, not necessarily
// git) to apply against an existing file. CommitMsg is accepted but purely
// advisory; the gateway has no VCS of its own to attach it to.
type DiffRequest struct {
	Path      string `json:"path" validate:"required"`
	DiffStr   string `json:"diff_str" validate:"required"`
	CommitMsg string `json:"commit_msg"`
}

type DiffResponse struct {
	NewContent string `json:"new_content"`
}

func init() {
	RegisterOp("Diff", handleDiff)
}

func handleDiff(_ context.Context, req *DiffRequest) (*DiffResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	fileDiff, err := diff.ParseFileDiff(req.DiffStr)
	if err != nil {
		return nil, err
	}
	newLines, err := fileDiff.Apply(lines)
	if err != nil {
		return nil, err
	}

	content, err := writeLines(path, newLines)
	if err != nil {
		return nil, err
	}
	return &DiffResponse{NewContent: content}, nil
}
