package message

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/ibwire/internal/protocol"
	"github.com/danmuck/ibwire/internal/protocol/frame"
)

var ErrMalformed = errors.New("message: malformed leading field")

// UnknownKindError reports a numeric tag missing from the catalog. Newer
// gateways send kinds this client does not know; callers forward them.
type UnknownKindError struct {
	Tag int
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("message: unknown kind %d", e.Tag)
}

func (e *UnknownKindError) Unwrap() error {
	return protocol.ErrUnknownMessageKind
}

// Classify reads the kind tag from the first field of f.
// An unknown numeric tag returns Kind(tag) with an *UnknownKindError.
func Classify(f frame.Frame) (Kind, error) {
	lead, ok := f.Field(0)
	if !ok || lead == "" {
		return Invalid, ErrMalformed
	}
	tag, err := strconv.Atoi(lead)
	if err != nil || tag < 0 {
		return Invalid, fmt.Errorf("%w: %q", ErrMalformed, lead)
	}
	k := Kind(tag)
	if !k.Known() {
		return k, &UnknownKindError{Tag: tag}
	}
	return k, nil
}

// RequestID extracts the request identifier carried by f, if kind has one.
func RequestID(kind Kind, f frame.Frame) (int64, bool) {
	info, ok := catalog[kind]
	if !ok || info.RequestIDField == NoRequestID {
		return 0, false
	}
	raw, ok := f.Field(info.RequestIDField)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsTerminal reports whether kind completes the request it answers.
func IsTerminal(kind Kind) bool {
	return catalog[kind].Terminal
}

// ErrorNotice is the decoded body of an error message frame.
type ErrorNotice struct {
	RequestID int64
	Code      int
	Message   string
}

// ParseErrorNotice decodes an error message frame: tag, version, id, code, text.
func ParseErrorNotice(f frame.Frame) (ErrorNotice, error) {
	fields := f.Fields()
	if len(fields) < 5 {
		return ErrorNotice{}, fmt.Errorf("%w: error message has %d fields", ErrMalformed, len(fields))
	}
	id, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ErrorNotice{}, fmt.Errorf("%w: error id %q", ErrMalformed, fields[2])
	}
	code, err := strconv.Atoi(fields[3])
	if err != nil {
		return ErrorNotice{}, fmt.Errorf("%w: error code %q", ErrMalformed, fields[3])
	}
	return ErrorNotice{RequestID: id, Code: code, Message: fields[4]}, nil
}

// IsWarningCode reports whether an error message code is informational and
// leaves the request it refers to open.
func IsWarningCode(code int) bool {
	switch {
	case code >= 2100 && code < 2200:
		return true
	case code == 399, code == 10167, code == 10197:
		return true
	}
	return false
}
