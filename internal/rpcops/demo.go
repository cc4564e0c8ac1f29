package rpcops

import (
	"context"
	"time"
)

type SystemTimeRequest struct{}

type SystemTimeResponse struct {
	Time string `json:"time"`
}

func init() {
	RegisterOp("SystemTime", handleSystemTime)
}

func handleSystemTime(_ context.Context, _ *SystemTimeRequest) (*SystemTimeResponse, error) {
	return &SystemTimeResponse{Time: time.Now().UTC().Format("2006-01-02T15:04:05-07:00")}, nil
}
