package protocol

import "errors"

// Transport-level failures tear the connection down and are reported once
// through the disconnect notification. Request-level failures stay local to
// one pending request.
var (
	ErrFraming            = errors.New("protocol: framing error")
	ErrHandshakeFailed    = errors.New("protocol: handshake failed")
	ErrConnectionLost     = errors.New("protocol: connection lost")
	ErrRequestTimeout     = errors.New("protocol: request timeout")
	ErrRequestCanceled    = errors.New("protocol: request canceled")
	ErrUnknownMessageKind = errors.New("protocol: unknown message kind")
	ErrNotConnected       = errors.New("protocol: not connected")
)

// IsTransportError reports whether err is one of the failures that end a
// connection.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrFraming) ||
		errors.Is(err, ErrHandshakeFailed) ||
		errors.Is(err, ErrConnectionLost)
}
