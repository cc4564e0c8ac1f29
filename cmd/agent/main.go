// Command agent is a reference implementation of the sandboxed process the
// gateway talks RPC to: it dials the gateway's Agent WebSocket endpoint and
// answers whatever operations it receives using the same internal/rpcops
// catalog the gateway validates requests against. It exists to exercise the
// gateway end-to-end without a real sandboxed coding agent attached.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/carabiner-tech/agentgateway/internal/rpcops"
)

type partialMessage struct {
	ID      uuid.UUID       `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	rpcServer := flag.String("rpc-server", "ws://localhost:8080/ws", "gateway Agent WebSocket URL")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, *rpcServer, nil)
	if err != nil {
		logger.Error("dial gateway", "err", err)
		os.Exit(1)
	}
	defer conn.CloseNow()

	logger.Info("connected", "rpc_server", *rpcServer)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logger.Error("read loop ending", "err", err)
			return
		}

		var partial partialMessage
		if err := json.Unmarshal(data, &partial); err != nil {
			logger.Warn("non-RPC message", "data", string(data))
			continue
		}

		var req rpcops.RpcRequest
		if err := json.Unmarshal(partial.Payload, &req); err != nil {
			if writeErr := reply(ctx, conn, partial.ID, rpcops.NewErrorResponse(fmt.Sprintf("deserialization error: %v", err))); writeErr != nil {
				logger.Error("write error reply", "err", writeErr)
				return
			}
			continue
		}

		logger.Info("rpc request", "id", partial.ID, "operation", req.Op)
		resp := req.Process(ctx)
		if err := reply(ctx, conn, partial.ID, resp); err != nil {
			logger.Error("write reply", "err", err)
			return
		}
	}
}

func reply(ctx context.Context, conn *websocket.Conn, id uuid.UUID, resp rpcops.RpcResponse) error {
	out, err := json.Marshal(rpcops.RpcMessage[rpcops.RpcResponse]{ID: id, Payload: resp})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, out)
}
