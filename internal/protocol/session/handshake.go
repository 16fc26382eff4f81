package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/ibwire/internal/protocol"
	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/message"
)

const (
	// ProtocolVersion is the only server version whose message layouts this
	// client decodes.
	ProtocolVersion = 176

	APIPrefix       = "API\x00"
	startAPIVersion = "2"
)

var ErrInvalidServerHello = errors.New("session: invalid server hello")

// VersionMismatchError is a handshake failure that retrying cannot fix.
type VersionMismatchError struct {
	Got  int
	Want int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("session: server version %d, want %d", e.Got, e.Want)
}

func (e *VersionMismatchError) Unwrap() error {
	return protocol.ErrHandshakeFailed
}

// ServerHello is the gateway's reply to the preamble.
type ServerHello struct {
	Version     int
	ConnectTime string
}

// VersionRange renders the supported version range as sent in the preamble.
func VersionRange(minVersion, maxVersion int) string {
	return fmt.Sprintf("v%d..%d", minVersion, maxVersion)
}

// EncodePreamble returns the bytes sent right after the socket connects: the
// API prefix followed by the length-prefixed version range.
func EncodePreamble(minVersion, maxVersion int) []byte {
	vr := VersionRange(minVersion, maxVersion)
	out := make([]byte, 0, len(APIPrefix)+frame.PrefixLen+len(vr))
	out = append(out, APIPrefix...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(vr)))
	out = append(out, vr...)
	return out
}

// ParseServerHello validates the handshake reply. The reply must carry
// exactly two fields and its version must equal want.
func ParseServerHello(f frame.Frame, want int) (ServerHello, error) {
	fields := f.Fields()
	if len(fields) != 2 {
		return ServerHello{}, fmt.Errorf("%w: %w: %d fields", protocol.ErrHandshakeFailed, ErrInvalidServerHello, len(fields))
	}
	v, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return ServerHello{}, fmt.Errorf("%w: %w: version %q", protocol.ErrHandshakeFailed, ErrInvalidServerHello, fields[0])
	}
	if v != want {
		return ServerHello{}, &VersionMismatchError{Got: v, Want: want}
	}
	return ServerHello{Version: v, ConnectTime: fields[1]}, nil
}

// StartAPIFields builds the session start message sent once the handshake
// succeeds.
func StartAPIFields(clientID int, optionalCapabilities string) []string {
	return []string{
		message.StartAPI.Tag(),
		startAPIVersion,
		strconv.Itoa(clientID),
		optionalCapabilities,
	}
}
