package entitlement

import "errors"

// Sentinel errors raised by the engine and the token verifier. Callers
// match with errors.Is; mapping to transport status codes belongs to the
// HTTP/gRPC layer, not to this package.
var (
	// ErrInvalidArgument reports a missing or blank required identifier.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists reports a duplicate license create for a content id.
	ErrAlreadyExists = errors.New("license already exists")

	// ErrNotFound reports an operation against an absent license record.
	ErrNotFound = errors.New("license not found")

	// ErrInvalidToken reports a malformed or badly signed bearer token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired reports a bearer token whose expiry claim has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrUnverifiable reports an unexpected verification failure. It is
	// logged at a higher severity than the other auth failures.
	ErrUnverifiable = errors.New("token unverifiable")
)
