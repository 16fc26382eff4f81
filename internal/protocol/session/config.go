package session

import (
	"time"

	"github.com/danmuck/ibwire/internal/protocol/frame"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	// MaxAttempts caps consecutive failed connects; zero means no cap.
	MaxAttempts int
}

// Config defines transport/session reliability defaults.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// RequestTimeout applies to issued requests that set no timeout of their
	// own. Zero disables the default deadline.
	RequestTimeout       time.Duration
	MinVersion           int
	MaxVersion           int
	OptionalCapabilities string
	MaxPayloadBytes      uint32
	ReadBufferSize       int
	FirstRequestID       int64
	Backoff              BackoffConfig
}

// DefaultConfig returns defaults for a local gateway connection.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		RequestTimeout:   30 * time.Second,
		MinVersion:       ProtocolVersion,
		MaxVersion:       ProtocolVersion,
		MaxPayloadBytes:  frame.DefaultMaxPayloadBytes,
		ReadBufferSize:   64 * 1024,
		FirstRequestID:   1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.MinVersion <= 0 {
		c.MinVersion = def.MinVersion
	}
	if c.MaxVersion <= 0 {
		c.MaxVersion = def.MaxVersion
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = def.MaxPayloadBytes
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.FirstRequestID <= 0 {
		c.FirstRequestID = def.FirstRequestID
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	return c
}

// Limits returns the frame limits derived from c.
func (c Config) Limits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxPayloadBytes}
}
