package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/ibwire/internal/testutil/testlog"
)

func TestTransitionTable(t *testing.T) {
	testlog.Start(t)
	allowed := [][2]State{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateAwaitingHandshake},
		{StateConnecting, StateDisconnected},
		{StateAwaitingHandshake, StateReady},
		{StateAwaitingHandshake, StateClosing},
		{StateReady, StateClosing},
		{StateClosing, StateDisconnected},
	}
	for _, tr := range allowed {
		require.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	refused := [][2]State{
		{StateDisconnected, StateReady},
		{StateConnecting, StateReady},
		{StateReady, StateDisconnected},
		{StateReady, StateAwaitingHandshake},
		{StateClosing, StateReady},
		{StateDisconnected, StateClosing},
	}
	for _, tr := range refused {
		require.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestStateString(t *testing.T) {
	testlog.Start(t)
	require.Equal(t, "awaiting_handshake", StateAwaitingHandshake.String())
	require.Equal(t, "state(42)", State(42).String())
}
