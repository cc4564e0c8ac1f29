// Package gateway is the HTTP boundary (C6): a thin adapter translating
// conversation-scoped HTTP requests into Session.SendRPC calls and back.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/carabiner-tech/agentgateway/internal/audit"
	"github.com/carabiner-tech/agentgateway/internal/logger"
	"github.com/carabiner-tech/agentgateway/internal/metrics"
	"github.com/carabiner-tech/agentgateway/internal/rpcops"
	"github.com/carabiner-tech/agentgateway/internal/session"
)

// Config is everything the Server needs beyond the Registry/Binding it
// operates on.
type Config struct {
	ConversationHeader string
	Debug              bool
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Server is the C6 HTTP boundary: conversation-header resolution, the
// generated per-operation route table, use_agent, and the Agent WebSocket
// upgrade endpoint.
type Server struct {
	cfg     Config
	reg     *session.Registry
	bind    *session.Binding
	audit   *audit.Log
	mux     *http.ServeMux
	limiter *convLimiter
}

// New builds a Server wired to reg/bind. auditLog may be nil to disable
// audit logging.
func New(cfg Config, reg *session.Registry, bind *session.Binding, auditLog *audit.Log) *Server {
	s := &Server{
		cfg:     cfg,
		reg:     reg,
		bind:    bind,
		audit:   auditLog,
		mux:     http.NewServeMux(),
		limiter: newConvLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// CloseAgents closes every currently connected Agent WebSocket. Intended
// for use ahead of http.Server.Shutdown so a draining gatewayd process
// doesn't leave Agent sockets open past the HTTP server's own deadline.
func (s *Server) CloseAgents() {
	s.reg.CloseAll()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws", s.handleAgentWS)
	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("POST /use_agent/{agent_id}", s.handleUseAgent)

	for _, op := range rpcops.KnownOperations() {
		op := op
		s.mux.HandleFunc("POST /"+routePath(op), s.handleOperation(op))
	}
}

// handleListAgents is the agent roster, a debugging aid served whether or not
// Config.Debug is set, mirroring the original's list_sessions: the connected
// agent ids, separated by a newline followed by a space.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0)
	for _, sess := range s.reg.List() {
		ids = append(ids, sess.ID.String())
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for i, id := range ids {
		if i > 0 {
			io.WriteString(w, "\n ")
		}
		io.WriteString(w, id)
	}
}

// handleUseAgent binds the requesting conversation to agent_id, rejecting
// an id that names no currently-registered Session.
func (s *Server) handleUseAgent(w http.ResponseWriter, r *http.Request) {
	conv, err := session.HeaderFromRequest(r, s.cfg.ConversationHeader)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	agentID := r.PathValue("agent_id")
	if err := s.bind.UseAgent(s.reg, conv, agentID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	io.WriteString(w, "Session set")
}

// resolveSession finds the Session bound to conv. In debug mode, a
// conversation with no binding yet falls back to an arbitrary connected
// Agent (mirroring manager.rs's first_session convenience), so a single
// Agent can be exercised from a fresh conversation without first calling
// use_agent. Never used outside Config.Debug.
func (s *Server) resolveSession(conv string) (*session.Session, error) {
	sess, err := s.bind.Resolve(s.reg, conv)
	if err == nil {
		return sess, nil
	}
	if s.cfg.Debug && err == session.ErrNoSessionBound {
		if first, ok := s.reg.First(); ok {
			logger.Warn("gateway: falling back to first connected agent (debug mode)", "conversation_id", conv, "agent_id", first.ID)
			return first, nil
		}
	}
	return nil, err
}

// handleOperation returns an http.HandlerFunc for one registered operation:
// resolve the conversation, decode and validate the body, call SendRPC,
// and project the result back to JSON (or a 400 with the RpcError message).
func (s *Server) handleOperation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := session.HeaderFromRequest(r, s.cfg.ConversationHeader)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.limiter.allow(conv) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		sess, err := s.resolveSession(conv)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
		if err != nil {
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}
		if len(body) == 0 {
			body = []byte("{}")
		}

		req, err := rpcops.DecodeRequest(op, body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := rpcops.ValidateRequest(req.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		metrics.RpcInflight.Inc()
		start := time.Now()
		resp, err := sess.SendRPC(r.Context(), req)
		if err == nil && resp.Op != op {
			err = fmt.Errorf("unexpected response operation %q", resp.Op)
		}
		metrics.RpcInflight.Dec()
		metrics.ObserveRPC(op, start, err)

		s.audit.Append(audit.Record{
			AgentID:        sess.ID.String(),
			ConversationID: conv,
			Operation:      op,
			OK:             err == nil,
			DurationMS:     time.Since(start).Milliseconds(),
			At:             start,
		})

		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if encErr := json.NewEncoder(w).Encode(resp.Body); encErr != nil {
			logger.Warn("gateway: encoding response", "operation", op, "err", encErr)
		}
	}
}

// handleAgentWS upgrades an Agent's connection, registers its Session, and
// runs the read loop until the socket closes, at which point the Session is
// removed from the Registry. Grounded on the teacher's handleWingWS upgrade
// pattern and on the original's ws_upgrade handler.
func (s *Server) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("gateway: websocket accept failed", "err", err)
		return
	}

	sess := session.New(conn)
	s.reg.Insert(sess)
	metrics.ActiveAgents.Inc()
	logger.Info("agent connected", "agent_id", sess.ID)

	sess.ReadLoop(context.Background())

	s.reg.Remove(sess.ID, sess)
	metrics.ActiveAgents.Dec()
	logger.Info("agent disconnected", "agent_id", sess.ID)
}
