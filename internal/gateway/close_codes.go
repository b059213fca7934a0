package gateway

import "errors"

// Custom WebSocket close codes used by the gateway protocol. Standard codes (1000, 1001) are defined by RFC 6455; the
// 4000 range is reserved for application use.
const (
	CloseUnknownError    = 4000
	CloseDecodeError     = 4002
	CloseAuthFailed      = 4004
	CloseRateLimited     = 4008
	CloseSessionTimedOut = 4009
	ClosePermissionDenied = 4010
)

// Sentinel errors for gateway failure modes. Each maps to a close code above.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSessionTimedOut      = errors.New("session timed out")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrDecodeError          = errors.New("payload decode error")
	ErrPermissionDenied     = errors.New("not a member of this room")
)
