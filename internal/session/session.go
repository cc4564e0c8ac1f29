// Package session implements the live Agent WebSocket: one Session per
// connected Agent, the correlation table that matches RPC replies to their
// callers, and the process-wide registry and conversation binding that sit
// on top of it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/carabiner-tech/agentgateway/internal/logger"
	"github.com/carabiner-tech/agentgateway/internal/rpcops"
)

// AgentId identifies one Agent for the lifetime of its WebSocket connection.
type AgentId = uuid.UUID

// state is the Session lifecycle: Opening -> Live -> Draining -> Closed.
type state int32

const (
	stateOpening state = iota
	stateLive
	stateDraining
	stateClosed
)

// ErrTransportClosed is what a pending send_rpc resolves to, and what any
// new send_rpc rejects with, once a Session starts draining or closes.
var ErrTransportClosed = errors.New("transport closed")

const writeTimeout = 10 * time.Second

// Session is one live Agent connection: the write half, the correlation
// table of outstanding calls, and the lifecycle state the read loop drives.
type Session struct {
	ID AgentId

	conn *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uuid.UUID]chan rpcops.RpcResponse

	state atomic.Int32
}

// New wraps an already-upgraded WebSocket connection as a Live Session with
// a fresh AgentId. The caller is responsible for running ReadLoop and for
// registering/deregistering the Session with a Registry.
func New(conn *websocket.Conn) *Session {
	s := &Session{
		ID:      uuid.New(),
		conn:    conn,
		pending: make(map[uuid.UUID]chan rpcops.RpcResponse),
	}
	s.state.Store(int32(stateLive))
	return s
}

// SendRPC allocates a correlation id, registers a waiter for it before the
// frame is written (so a fast reply can never race ahead of the waiter),
// writes the envelope, and blocks until the Agent replies or the Session
// closes. It never panics on a dead socket: a closed or draining Session
// resolves to ErrTransportClosed.
func (s *Session) SendRPC(ctx context.Context, req rpcops.RpcRequest) (rpcops.RpcResponse, error) {
	if state(s.state.Load()) != stateLive {
		return rpcops.RpcResponse{}, ErrTransportClosed
	}

	id := uuid.New()
	waiter := make(chan rpcops.RpcResponse, 1)

	s.pendingMu.Lock()
	if state(s.state.Load()) != stateLive {
		s.pendingMu.Unlock()
		return rpcops.RpcResponse{}, ErrTransportClosed
	}
	s.pending[id] = waiter
	s.pendingMu.Unlock()

	msg := rpcops.RpcMessage[rpcops.RpcRequest]{ID: id, Payload: req}
	data, err := json.Marshal(msg)
	if err != nil {
		s.dropWaiter(id)
		return rpcops.RpcResponse{}, fmt.Errorf("session: marshaling request: %w", err)
	}

	if err := s.write(ctx, data); err != nil {
		s.dropWaiter(id)
		return rpcops.RpcResponse{}, fmt.Errorf("session: writing request: %w", err)
	}

	select {
	case resp := <-waiter:
		if resp.Op == rpcops.RpcErrorTag {
			if e, ok := resp.Body.(*rpcops.RpcError); ok {
				if e.Message == ErrTransportClosed.Error() {
					return resp, ErrTransportClosed
				}
				return resp, e
			}
		}
		return resp, nil
	case <-ctx.Done():
		s.dropWaiter(id)
		return rpcops.RpcResponse{}, ctx.Err()
	}
}

func (s *Session) dropWaiter(id uuid.UUID) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

func (s *Session) write(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

// ReadLoop processes inbound frames until the socket closes or ctx is
// cancelled, matching each RpcMessage[RpcResponse] to its waiter. It returns
// once the Session should be considered Closed; the caller is expected to
// then remove it from the Registry.
func (s *Session) ReadLoop(ctx context.Context) {
	defer s.drain()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			logger.Debug("session read loop ending", "agent_id", s.ID, "err", err)
			return
		}
		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	var msg rpcops.RpcMessage[rpcops.RpcResponse]
	if err := json.Unmarshal(data, &msg); err != nil {
		id, ok := rpcops.PeekEnvelopeID(data)
		if !ok {
			logger.Warn("dropping unparseable frame", "agent_id", s.ID, "err", err)
			return
		}
		logger.Warn("dropping frame with unparseable payload", "agent_id", s.ID, "id", id, "err", err)
		return
	}

	s.pendingMu.Lock()
	waiter, ok := s.pending[msg.ID]
	if ok {
		delete(s.pending, msg.ID)
	}
	s.pendingMu.Unlock()

	if !ok {
		logger.Debug("no waiter for response", "agent_id", s.ID, "id", msg.ID)
		return
	}
	waiter <- msg.Payload
}

// drain transitions the Session to Draining (rejecting new sends) and
// releases every outstanding waiter with ErrTransportClosed, then marks it
// Closed. Idempotent.
func (s *Session) drain() {
	s.state.Store(int32(stateDraining))

	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[uuid.UUID]chan rpcops.RpcResponse)
	s.pendingMu.Unlock()

	for _, waiter := range pending {
		waiter <- rpcops.NewErrorResponse(ErrTransportClosed.Error())
	}

	s.state.Store(int32(stateClosed))
}

// Closed reports whether the Session has finished draining.
func (s *Session) Closed() bool {
	return state(s.state.Load()) == stateClosed
}

// Close closes the underlying transport, causing ReadLoop to return and
// drain to run. Used by graceful shutdown to close every connected Agent
// socket before the HTTP server itself stops.
func (s *Session) Close() {
	s.conn.Close(websocket.StatusGoingAway, "server shutting down")
}
