package rpcops

import "github.com/go-playground/validator/v10"

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks an operation request's struct tags before it is
// ever handed to a handler or serialized onto the wire, so a malformed HTTP
// body is rejected at the boundary with a field-level message instead of
// surfacing as a confusing Agent-side RpcError.
func ValidateRequest(req any) error {
	return structValidator.Struct(req)
}
