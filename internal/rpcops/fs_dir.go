package rpcops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ListFilesRequest walks path up to max_depth (default 3, unlimited when
// negative) and reports every file found, plus any directory it had to stop
// descending into because of the depth cutoff. MaxDepth and IgnoreHidden are
// pointers so an explicit zero/false is distinguishable from "omitted" on
// the wire; handleListFiles applies the spec's {3, true} defaults only when
// the pointer is nil.
type ListFilesRequest struct {
	Path         string `json:"path"`
	MaxDepth     *int   `json:"max_depth,omitempty"`
	IgnoreHidden *bool  `json:"ignore_hidden,omitempty"`
}

type ListFilesResponse struct {
	Files       []string `json:"files"`
	Untraversed []string `json:"untraversed"`
}

func init() {
	RegisterOp("ListFiles", handleListFiles)
}

func handleListFiles(_ context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	path := req.Path
	if path == "" {
		path = "."
	}
	maxDepth := 3
	if req.MaxDepth != nil {
		maxDepth = *req.MaxDepth
	}
	ignoreHidden := true
	if req.IgnoreHidden != nil {
		ignoreHidden = *req.IgnoreHidden
	}
	if _, err := ensureRelative(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("No such file or directory: %s", path)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("Path is a file, not a directory: %s", path)
	}

	resp := &ListFilesResponse{Files: []string{}, Untraversed: []string{}}
	rootDepth := pathDepth(path)

	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			return nil // skip the root directory itself
		}
		if ignoreHidden && filepath.Base(p)[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		depth := pathDepth(p) - rootDepth
		if maxDepth >= 0 && depth > maxDepth {
			if d.IsDir() {
				resp.Untraversed = append(resp.Untraversed, p)
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			resp.Files = append(resp.Files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// pathDepth counts path separators, used as a cheap depth measure relative
// to the walk root.
func pathDepth(p string) int {
	count := 0
	for _, r := range filepath.ToSlash(p) {
		if r == '/' {
			count++
		}
	}
	return count
}

type CreateDirectoryRequest struct {
	Path string `json:"path" validate:"required"`
}

type CreateDirectoryResponse struct {
	Success bool `json:"success"`
}

func init() {
	RegisterOp("CreateDirectory", handleCreateDirectory)
}

func handleCreateDirectory(_ context.Context, req *CreateDirectoryRequest) (*CreateDirectoryResponse, error) {
	if _, err := ensureRelative(req.Path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.Path, 0755); err != nil {
		return nil, err
	}
	return &CreateDirectoryResponse{Success: true}, nil
}
