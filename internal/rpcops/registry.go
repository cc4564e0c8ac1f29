// Package rpcops defines the closed, symmetric RPC operation catalog: the
// RpcRequest/RpcResponse tagged unions, the envelope they travel in, and a
// generic registry that a single RegisterOp call per operation expands into
// request/response variants, dispatch, and projection — mirroring what
// Rust's define_rpc! macro does at compile time, since Go has no macros.
package rpcops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RpcErrorTag is the wire tag for the one RpcResponse variant that isn't
// tied to a specific operation.
const RpcErrorTag = "RpcError"

// RpcError is the payload of the RpcResponse::RpcError variant, carrying an
// Agent-side operation failure back to the caller.
type RpcError struct {
	Message string `json:"message"`
}

func (e *RpcError) Error() string { return e.Message }

type opDescriptor struct {
	newRequest  func() any
	newResponse func() any
	handle      func(ctx context.Context, req any) (any, error)
}

var registry = map[string]opDescriptor{}

// RegisterOp adds one operation to the closed catalog. Called once per
// operation from an init() in this package; registering the same name twice
// is a programming error and panics immediately at package init time rather
// than failing silently at dispatch time.
func RegisterOp[Req any, Resp any](name string, handle func(ctx context.Context, req *Req) (*Resp, error)) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("rpcops: operation %q already registered", name))
	}
	registry[name] = opDescriptor{
		newRequest:  func() any { return new(Req) },
		newResponse: func() any { return new(Resp) },
		handle: func(ctx context.Context, req any) (any, error) {
			return handle(ctx, req.(*Req))
		},
	}
}

// KnownOperations returns the registered operation tags, for diagnostics
// and for the HTTP boundary's route table.
func KnownOperations() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// DecodeRequest builds the RpcRequest for op from an untagged JSON body —
// the shape an HTTP client posts to POST /<operation>, where the operation
// name is already known from the URL and need not be repeated as a tag in
// the body the way the WebSocket envelope requires it.
func DecodeRequest(op string, body []byte) (RpcRequest, error) {
	desc, ok := registry[op]
	if !ok {
		return RpcRequest{}, fmt.Errorf("rpcops: unknown operation %q", op)
	}
	req := desc.newRequest()
	if err := json.Unmarshal(body, req); err != nil {
		return RpcRequest{}, fmt.Errorf("rpcops: decoding %s request: %w", op, err)
	}
	return RpcRequest{Op: op, Body: req}, nil
}

// RpcRequest is the externally-tagged union of every OpRequest, e.g.
// {"ListFiles": {...}}.
type RpcRequest struct {
	Op   string
	Body any
}

// NewRequest lifts a concrete OpRequest into the RpcRequest union.
func NewRequest[Req any](op string, req *Req) RpcRequest {
	return RpcRequest{Op: op, Body: req}
}

func (r RpcRequest) MarshalJSON() ([]byte, error) {
	if r.Op == "" {
		return nil, fmt.Errorf("rpcops: cannot marshal RpcRequest with no operation tag")
	}
	return json.Marshal(map[string]any{r.Op: r.Body})
}

func (r *RpcRequest) UnmarshalJSON(data []byte) error {
	tag, body, err := unmarshalSingleTag(data)
	if err != nil {
		return err
	}
	desc, ok := registry[tag]
	if !ok {
		return fmt.Errorf("rpcops: unknown operation %q", tag)
	}
	req := desc.newRequest()
	if err := json.Unmarshal(body, req); err != nil {
		return fmt.Errorf("rpcops: decoding %s request: %w", tag, err)
	}
	r.Op = tag
	r.Body = req
	return nil
}

// Process dispatches to the registered handler for r.Op and wraps any
// resulting error as RpcResponse::RpcError, so it never fails itself:
// every RpcRequest.Process call yields exactly one RpcResponse.
func (r RpcRequest) Process(ctx context.Context) RpcResponse {
	desc, ok := registry[r.Op]
	if !ok {
		return RpcResponse{Op: RpcErrorTag, Body: &RpcError{Message: fmt.Sprintf("unknown operation %q", r.Op)}}
	}
	resp, err := desc.handle(ctx, r.Body)
	if err != nil {
		return RpcResponse{Op: RpcErrorTag, Body: &RpcError{Message: err.Error()}}
	}
	return RpcResponse{Op: r.Op, Body: resp}
}

// RpcResponse is the externally-tagged union of every OpResponse plus the
// RpcError variant.
type RpcResponse struct {
	Op   string
	Body any
}

// NewResponse lifts a concrete OpResponse into the RpcResponse union.
func NewResponse[Resp any](op string, resp *Resp) RpcResponse {
	return RpcResponse{Op: op, Body: resp}
}

// NewErrorResponse builds the RpcError variant directly, for transport- and
// envelope-layer failures that never reach an operation handler.
func NewErrorResponse(message string) RpcResponse {
	return RpcResponse{Op: RpcErrorTag, Body: &RpcError{Message: message}}
}

func (r RpcResponse) MarshalJSON() ([]byte, error) {
	if r.Op == "" {
		return nil, fmt.Errorf("rpcops: cannot marshal RpcResponse with no operation tag")
	}
	return json.Marshal(map[string]any{r.Op: r.Body})
}

func (r *RpcResponse) UnmarshalJSON(data []byte) error {
	tag, body, err := unmarshalSingleTag(data)
	if err != nil {
		return err
	}
	if tag == RpcErrorTag {
		e := &RpcError{}
		if err := json.Unmarshal(body, e); err != nil {
			return fmt.Errorf("rpcops: decoding RpcError: %w", err)
		}
		r.Op = tag
		r.Body = e
		return nil
	}
	desc, ok := registry[tag]
	if !ok {
		return fmt.Errorf("rpcops: unknown operation %q", tag)
	}
	resp := desc.newResponse()
	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("rpcops: decoding %s response: %w", tag, err)
	}
	r.Op = tag
	r.Body = resp
	return nil
}

// Expect projects an RpcResponse onto the concrete type a caller expected.
// An RpcError variant is surfaced as a Go error carrying its message; any
// other tag mismatch (the Agent answered a different operation than the one
// asked) is a distinct, explicit error rather than a panic.
func Expect[Resp any](resp RpcResponse) (*Resp, error) {
	if resp.Op == RpcErrorTag {
		if e, ok := resp.Body.(*RpcError); ok {
			return nil, e
		}
		return nil, fmt.Errorf("rpcops: malformed RpcError response")
	}
	v, ok := resp.Body.(*Resp)
	if !ok {
		return nil, fmt.Errorf("rpcops: unexpected response operation %q", resp.Op)
	}
	return v, nil
}

func unmarshalSingleTag(data []byte) (tag string, body json.RawMessage, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("rpcops: decoding tagged payload: %w", err)
	}
	if len(raw) != 1 {
		return "", nil, fmt.Errorf("rpcops: tagged payload must have exactly one key, got %d", len(raw))
	}
	for k, v := range raw {
		tag, body = k, v
	}
	return tag, body, nil
}

// RpcMessage is the envelope every frame travels in: a correlation id paired
// with either an RpcRequest (gateway to Agent) or an RpcResponse (Agent to
// gateway).
type RpcMessage[T any] struct {
	ID      uuid.UUID
	Payload T
}

type rpcMessageWire struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (m RpcMessage[T]) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("rpcops: marshaling envelope payload: %w", err)
	}
	return json.Marshal(rpcMessageWire{ID: m.ID.String(), Payload: body})
}

func (m *RpcMessage[T]) UnmarshalJSON(data []byte) error {
	var wire rpcMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("rpcops: decoding envelope: %w", err)
	}
	id, err := uuid.Parse(wire.ID)
	if err != nil {
		return fmt.Errorf("rpcops: decoding envelope id: %w", err)
	}
	var payload T
	if err := json.Unmarshal(wire.Payload, &payload); err != nil {
		return err
	}
	m.ID = id
	m.Payload = payload
	return nil
}

// PeekEnvelopeID extracts just the correlation id from a raw envelope frame
// without requiring the payload to parse successfully. This is the "parse
// header first, payload second" two-phase approach: on a payload parse
// failure the id is still available so the caller can reply with a keyed
// RpcError instead of silently dropping the frame.
func PeekEnvelopeID(data []byte) (uuid.UUID, bool) {
	var wire rpcMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(wire.ID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
