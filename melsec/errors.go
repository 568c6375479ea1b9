package melsec

import "errors"

// Error kinds surfaced by the client. Callers branch on these with
// errors.Is rather than inspecting message text.
var (
	// ErrConnection indicates the transport could not be established or
	// maintained (dial failure, broken socket, not connected, retries
	// exhausted).
	ErrConnection = errors.New("plc connection error")

	// ErrTimeout indicates the controller did not respond within the
	// configured window.
	ErrTimeout = errors.New("plc timeout")

	// ErrProtocol indicates the response was malformed or inconsistent
	// with the request, or the controller rejected the request with a
	// non-zero end code.
	ErrProtocol = errors.New("plc protocol error")

	// ErrInvalidAddress indicates a device name that cannot be parsed or
	// is outside the addressable range.
	ErrInvalidAddress = errors.New("invalid device address")
)
