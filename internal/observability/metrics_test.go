package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/ibwire/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	log := testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("ibwirectl", "GET", "/health", 200, 12*time.Millisecond)
	RecordRequest("completed", 24*time.Millisecond)
	RecordStateTransition("ready", "closing")
	RecordHandshake(3*time.Millisecond, true)
	RecordConnectAttempt(false)

	log.Debug().Msg("registration idempotent and recording paths executed")
}

func TestRecordFrameCountsBytes(t *testing.T) {
	testlog.Start(t)
	beforeFrames := testutil.ToFloat64(frames.WithLabelValues(Inbound))
	beforeBytes := testutil.ToFloat64(frameBytes.WithLabelValues(Inbound))

	RecordFrame(Inbound, 10)
	RecordFrame(Inbound, 6)

	require.Equal(t, beforeFrames+2, testutil.ToFloat64(frames.WithLabelValues(Inbound)))
	require.Equal(t, beforeBytes+16, testutil.ToFloat64(frameBytes.WithLabelValues(Inbound)))
}

func TestPendingGaugeTracksDeltas(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(pendingRequests)
	AddPendingRequests(3)
	AddPendingRequests(-2)
	require.Equal(t, before+1, testutil.ToFloat64(pendingRequests))
	AddPendingRequests(-1)
}
