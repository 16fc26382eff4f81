package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/ibwire/internal/testutil/testlog"
)

func TestBackoffDeterministicWithoutJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	b := cfg.NewBackOff()
	want := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for i, w := range want {
		require.Equal(t, w, b.NextBackOff(), "attempt %d", i+1)
	}
	b.Reset()
	require.Equal(t, 250*time.Millisecond, b.NextBackOff())
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig().Backoff
	b := cfg.NewBackOff()
	d := b.NextBackOff()
	require.GreaterOrEqual(t, d, cfg.InitialDelay/2)
	require.LessOrEqual(t, d, cfg.InitialDelay*3/2)
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{RequestTimeout: -1, Backoff: BackoffConfig{Multiplier: 0.5}}.WithDefaults()
	def := DefaultConfig()
	require.Equal(t, def.ConnectTimeout, cfg.ConnectTimeout)
	require.Equal(t, def.HandshakeTimeout, cfg.HandshakeTimeout)
	require.Equal(t, time.Duration(0), cfg.RequestTimeout)
	require.Equal(t, ProtocolVersion, cfg.MinVersion)
	require.Equal(t, ProtocolVersion, cfg.MaxVersion)
	require.Equal(t, int64(1), cfg.FirstRequestID)
	require.Equal(t, 2.0, cfg.Backoff.Multiplier)
	require.Equal(t, def.MaxPayloadBytes, cfg.Limits().MaxPayloadBytes)
}
