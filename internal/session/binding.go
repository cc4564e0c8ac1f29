package session

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/carabiner-tech/agentgateway/internal/metrics"
)

// ConversationId is an external session identifier minted by whatever chat
// integration is driving a conversation. The gateway treats it as opaque.
type ConversationId = string

// ErrMissingConversationHeader is returned when the configured conversation
// header is absent from an inbound HTTP request.
var ErrMissingConversationHeader = errors.New("Missing conversation-id header")

// ErrNoSessionBound means the Conversation has never been pointed at an
// Agent via use_agent.
var ErrNoSessionBound = errors.New("No session set for this Conversation yet")

// ErrBoundSessionGone means the Conversation is bound to an AgentId that is
// no longer present in the Registry; the Agent must reconnect and the
// conversation must be re-bound with use_agent before it can be used again.
var ErrBoundSessionGone = errors.New("Agent websocket session ended. Set a new session id or reconnect Agent")

// ErrUnknownSession is returned by UseAgent when the given AgentId has no
// live entry in the Registry.
var ErrUnknownSession = errors.New("No session found for that session id")

// Binding maps each Conversation to the AgentId last assigned to it via
// use_agent. It holds no opinion on whether that Agent is still connected;
// Resolve cross-checks against a Registry for that.
type Binding struct {
	mu   sync.RWMutex
	byID map[ConversationId]AgentId
}

// NewBinding returns an empty Binding, ready to use.
func NewBinding() *Binding {
	return &Binding{byID: make(map[ConversationId]AgentId)}
}

// HeaderFromRequest extracts the conversation id from r using headerName
// (the configured conversation header), returning ErrMissingConversationHeader
// if it is absent or empty.
func HeaderFromRequest(r *http.Request, headerName string) (ConversationId, error) {
	v := r.Header.Get(headerName)
	if v == "" {
		return "", ErrMissingConversationHeader
	}
	return v, nil
}

// UseAgent validates that agentID (as a string) both parses as a UUID and
// names a Session currently present in reg, then binds conv to it,
// replacing any prior binding.
func (b *Binding) UseAgent(reg *Registry, conv ConversationId, agentID string) error {
	id, err := uuid.Parse(agentID)
	if err != nil {
		return fmt.Errorf("Agent ID must be a valid UUID: %w", err)
	}
	if _, ok := reg.Get(id); !ok {
		return ErrUnknownSession
	}
	b.mu.Lock()
	_, existed := b.byID[conv]
	b.byID[conv] = id
	count := len(b.byID)
	b.mu.Unlock()
	if !existed {
		metrics.ActiveConversations.Set(float64(count))
	}
	return nil
}

// Resolve looks up the Session bound to conv, re-validating against reg on
// every call so a binding left over from a disconnected Agent is surfaced
// as ErrBoundSessionGone rather than silently handed out.
func (b *Binding) Resolve(reg *Registry, conv ConversationId) (*Session, error) {
	b.mu.RLock()
	agentID, ok := b.byID[conv]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNoSessionBound
	}
	s, ok := reg.Get(agentID)
	if !ok {
		return nil, ErrBoundSessionGone
	}
	return s, nil
}

// Remove drops conv's binding entirely, if one exists.
func (b *Binding) Remove(conv ConversationId) {
	b.mu.Lock()
	delete(b.byID, conv)
	count := len(b.byID)
	b.mu.Unlock()
	metrics.ActiveConversations.Set(float64(count))
}
