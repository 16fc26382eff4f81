package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/ibwire/internal/protocol"
)

const (
	PrefixLen = 4
	Separator = byte(0)

	// DefaultMaxPayloadBytes matches the gateway's own message size cap.
	DefaultMaxPayloadBytes uint32 = 0xFFFFFF
)

var (
	ErrShortPrefix       = errors.New("frame: short length prefix")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrFieldContainsNull = errors.New("frame: field contains null byte")
)

// FramingError reports a length prefix that cannot belong to a valid frame.
// Byte alignment is lost once this happens.
type FramingError struct {
	Declared uint32
	Max      uint32
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("frame: declared length %d exceeds max %d", e.Declared, e.Max)
}

func (e *FramingError) Unwrap() error {
	return protocol.ErrFraming
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: DefaultMaxPayloadBytes}
}

func (l Limits) withDefaults() Limits {
	if l.MaxPayloadBytes == 0 {
		l.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return l
}

// Frame is one complete wire message payload, without its length prefix.
// The zero value is the empty frame.
type Frame struct {
	payload []byte
}

// New copies payload into a Frame.
func New(payload []byte) Frame {
	if len(payload) == 0 {
		return Frame{}
	}
	return Frame{payload: bytes.Clone(payload)}
}

// FromFields builds the frame Encode would produce for fields, minus the prefix.
func FromFields(fields ...string) (Frame, error) {
	payload, err := joinFields(fields)
	if err != nil {
		return Frame{}, err
	}
	return Frame{payload: payload}, nil
}

func (f Frame) Len() int {
	return len(f.payload)
}

func (f Frame) IsEmpty() bool {
	return len(f.payload) == 0
}

// Payload returns a copy of the raw payload bytes.
func (f Frame) Payload() []byte {
	return bytes.Clone(f.payload)
}

// Fields splits the payload on null separators. The trailing null written by
// Encode does not produce an extra empty field.
func (f Frame) Fields() []string {
	if len(f.payload) == 0 {
		return nil
	}
	body := f.payload
	if body[len(body)-1] == Separator {
		body = body[:len(body)-1]
	}
	return strings.Split(string(body), "\x00")
}

// Field returns field i, if present.
func (f Frame) Field(i int) (string, bool) {
	if i < 0 {
		return "", false
	}
	fields := f.Fields()
	if i >= len(fields) {
		return "", false
	}
	return fields[i], true
}

// String renders the payload with visible separators for trace logs.
func (f Frame) String() string {
	return strings.ReplaceAll(strings.TrimSuffix(string(f.payload), "\x00"), "\x00", "|")
}

// Encode joins fields with null separators, appends a trailing null and
// prepends the big-endian length prefix. No fields encode to an empty payload.
func Encode(fields ...string) ([]byte, error) {
	payload, err := joinFields(fields)
	if err != nil {
		return nil, err
	}
	return Prefix(payload), nil
}

// Prefix returns payload with its 4-byte length prefix.
func Prefix(payload []byte) []byte {
	out := make([]byte, PrefixLen+len(payload))
	binary.BigEndian.PutUint32(out[:PrefixLen], uint32(len(payload)))
	copy(out[PrefixLen:], payload)
	return out
}

func joinFields(fields []string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	size := 0
	for i, field := range fields {
		if strings.IndexByte(field, Separator) >= 0 {
			return nil, fmt.Errorf("%w: field %d", ErrFieldContainsNull, i)
		}
		size += len(field) + 1
	}
	payload := make([]byte, 0, size)
	for _, field := range fields {
		payload = append(payload, field...)
		payload = append(payload, Separator)
	}
	return payload, nil
}

// ReadFrame blocks until one complete frame has been read from r.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	limits = limits.withDefaults()
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortPrefix
		}
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > limits.MaxPayloadBytes {
		return Frame{}, &FramingError{Declared: n, Max: limits.MaxPayloadBytes}
	}
	if n == 0 {
		return Frame{}, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{payload: payload}, nil
}

// WriteFrame writes payload with its length prefix in a single Write call.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	limits = limits.withDefaults()
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	_, err := w.Write(Prefix(payload))
	return err
}
