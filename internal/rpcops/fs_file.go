package rpcops

import (
	"context"
	"fmt"
	"os"
)

type CreateFileRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

type CreateFileResponse struct {
	Success bool `json:"success"`
}

func init() {
	RegisterOp("CreateFile", handleCreateFile)
}

func handleCreateFile(_ context.Context, req *CreateFileRequest) (*CreateFileResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(req.Content), 0644); err != nil {
		return nil, err
	}
	return &CreateFileResponse{Success: true}, nil
}

type ReadFileRequest struct {
	Path string `json:"path" validate:"required"`
}

type ReadFileResponse struct {
	Content string `json:"content"`
}

func init() {
	RegisterOp("ReadFile", handleReadFile)
}

func handleReadFile(_ context.Context, req *ReadFileRequest) (*ReadFileResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("No such file or directory: %s", req.Path)
		}
		return nil, err
	}
	return &ReadFileResponse{Content: string(data)}, nil
}

type MoveFileRequest struct {
	Src  string `json:"src" validate:"required"`
	Dest string `json:"dest" validate:"required"`
}

type MoveFileResponse struct {
	Success bool `json:"success"`
}

func init() {
	RegisterOp("MoveFile", handleMoveFile)
}

func handleMoveFile(_ context.Context, req *MoveFileRequest) (*MoveFileResponse, error) {
	src, err := ensureRelative(req.Src)
	if err != nil {
		return nil, err
	}
	dest, err := ensureRelative(req.Dest)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(src, dest); err != nil {
		return nil, err
	}
	return &MoveFileResponse{Success: true}, nil
}

type RemoveFileRequest struct {
	Path string `json:"path" validate:"required"`
}

type RemoveFileResponse struct {
	Success bool `json:"success"`
}

func init() {
	RegisterOp("RemoveFile", handleRemoveFile)
}

func handleRemoveFile(_ context.Context, req *RemoveFileRequest) (*RemoveFileResponse, error) {
	path, err := ensureRelative(req.Path)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, err
	}
	return &RemoveFileResponse{Success: true}, nil
}
