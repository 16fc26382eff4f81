package gateway

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/ibwire/internal/gatewaysim"
	"github.com/danmuck/ibwire/internal/protocol"
	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/message"
	"github.com/danmuck/ibwire/internal/protocol/session"
	"github.com/danmuck/ibwire/internal/testutil/testlog"
)

const waitLimit = 3 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 256)}
}

func (r *recorder) Dispatch(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.ch <- ev:
	default:
	}
}

func waitEvent[T Event](t *testing.T, r *recorder) T {
	t.Helper()
	deadline := time.After(waitLimit)
	for {
		select {
		case ev := <-r.ch:
			if got, ok := ev.(T); ok {
				return got
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func testConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.HandshakeTimeout = time.Second
	cfg.RequestTimeout = 2 * time.Second
	cfg.FirstRequestID = 1001
	return cfg
}

func startGateway(t *testing.T, cfg gatewaysim.Config) *gatewaysim.Server {
	t.Helper()
	srv, err := gatewaysim.Listen("127.0.0.1:0", cfg, testlog.Start(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func connect(t *testing.T, srv *gatewaysim.Server, disp Dispatcher) (*Conn, *gatewaysim.Session) {
	t.Helper()
	conn := NewConn(testConfig(), disp, testlog.Start(t))
	host, port := srv.Addr()
	require.NoError(t, conn.Connect(context.Background(), host, port, 7))
	t.Cleanup(func() { _ = conn.Disconnect() })

	var sess *gatewaysim.Session
	select {
	case sess = <-srv.Accepted():
	case <-time.After(waitLimit):
		t.Fatalf("gateway never accepted")
	}
	select {
	case <-sess.Started():
	case <-time.After(waitLimit):
		t.Fatalf("session start never arrived")
	}
	return conn, sess
}

func contractRequest(symbol string) session.Request {
	return session.Request{
		Fields:  []string{message.ReqContractData.Tag(), "8", "", "0", symbol, "STK"},
		IDField: 2,
	}
}

func TestConnectHandshakeAndStartAPI(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{ServerTime: "20240102 10:00:00 EST"})
	rec := newRecorder()
	conn, sess := connect(t, srv, rec)

	require.Equal(t, StateReady, conn.State())
	require.Equal(t, 176, conn.ServerVersion())
	require.Equal(t, "20240102 10:00:00 EST", conn.ServerTime())
	require.NotEmpty(t, conn.SessionID())
	require.Equal(t, []byte("API\x00\x00\x00\x00\tv176..176"), sess.Preamble())
	require.Equal(t, []string{"71", "2", "7", ""}, sess.Received()[0])
	require.Equal(t, 7, sess.ClientID())
	require.Equal(t, int64(2), conn.Outbound().Messages)

	ev := waitEvent[Connected](t, rec)
	require.Equal(t, 176, ev.ServerVersion)
	require.Equal(t, conn.SessionID(), ev.SessionID)

	next := waitEvent[MessageReceived](t, rec)
	require.Equal(t, message.NextValidID, next.Kind)
}

func TestConnectOnReadyIsNoop(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	conn, _ := connect(t, srv, nil)
	host, port := srv.Addr()
	require.NoError(t, conn.Connect(context.Background(), host, port, 7))
	require.Equal(t, 1, srv.Connections())
}

func TestConnectVersionMismatch(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{Version: 151})
	rec := newRecorder()
	conn := NewConn(testConfig(), rec, testlog.Start(t))
	host, port := srv.Addr()

	err := conn.Connect(context.Background(), host, port, 1)
	require.ErrorIs(t, err, protocol.ErrHandshakeFailed)
	var mismatch *session.VersionMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, 151, mismatch.Got)
	require.Equal(t, StateDisconnected, conn.State())

	ev := waitEvent[Disconnected](t, rec)
	require.NotEmpty(t, ev.Reason)
}

func TestConnectHandshakeTimeout(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{SilentHandshake: true})
	cfg := testConfig()
	cfg.HandshakeTimeout = 100 * time.Millisecond
	conn := NewConn(cfg, nil, testlog.Start(t))
	host, port := srv.Addr()

	start := time.Now()
	err := conn.Connect(context.Background(), host, port, 1)
	require.ErrorIs(t, err, protocol.ErrHandshakeFailed)
	require.Less(t, time.Since(start), waitLimit)
	require.Equal(t, StateDisconnected, conn.State())
	select {
	case <-conn.Done():
	default:
		t.Fatalf("teardown incomplete after failed connect")
	}
}

func TestConnectDialFailure(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	host, port := srv.Addr()
	require.NoError(t, srv.Close())

	conn := NewConn(testConfig(), nil, testlog.Start(t))
	err := conn.Connect(context.Background(), host, port, 1)
	require.Error(t, err)
	require.Equal(t, StateDisconnected, conn.State())
}

func TestNotConnected(t *testing.T) {
	conn := NewConn(testConfig(), nil, testlog.Start(t))
	require.ErrorIs(t, conn.Send("49", "1"), protocol.ErrNotConnected)
	_, err := conn.Issue(context.Background(), contractRequest("AAPL"))
	require.ErrorIs(t, err, protocol.ErrNotConnected)
	require.NoError(t, conn.Disconnect())
	require.Zero(t, conn.PendingCount())
}

func TestIssueResolvesOverLoopback(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	conn, _ := connect(t, srv, nil)
	ctx := context.Background()

	aapl, err := conn.Issue(ctx, contractRequest("AAPL"))
	require.NoError(t, err)
	msft, err := conn.Issue(ctx, contractRequest("MSFT"))
	require.NoError(t, err)
	require.Equal(t, int64(1001), aapl.ID)
	require.Equal(t, int64(1002), msft.ID)

	frames, err := msft.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	symbol, _ := frames[0].Field(2)
	require.Equal(t, "MSFT", symbol)

	frames, err = aapl.Wait(ctx)
	require.NoError(t, err)
	symbol, _ = frames[0].Field(2)
	require.Equal(t, "AAPL", symbol)
	require.Zero(t, conn.PendingCount())
}

func TestIssueErrorReply(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	conn, _ := connect(t, srv, nil)

	p, err := conn.Issue(context.Background(), contractRequest("NOSUCH"))
	require.NoError(t, err)
	_, err = p.Wait(context.Background())
	var reqErr *session.RequestError
	require.True(t, errors.As(err, &reqErr))
	require.Equal(t, 200, reqErr.Code)
}

func TestDisconnectFailsPending(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	srv.Handle(message.ReqContractData, func(*gatewaysim.Session, []string) {})
	rec := newRecorder()
	conn, _ := connect(t, srv, rec)

	var pending []*session.Pending
	for _, sym := range []string{"AAPL", "MSFT", "IBM"} {
		p, err := conn.Issue(context.Background(), contractRequest(sym))
		require.NoError(t, err)
		pending = append(pending, p)
	}
	require.Equal(t, 3, conn.PendingCount())
	require.Len(t, conn.Pending(), 3)

	require.NoError(t, conn.Disconnect())
	require.Equal(t, StateDisconnected, conn.State())
	require.Zero(t, conn.PendingCount())
	require.Zero(t, conn.ServerVersion())
	for _, p := range pending {
		_, err := p.Result()
		require.ErrorIs(t, err, protocol.ErrConnectionLost)
	}

	ev := waitEvent[Disconnected](t, rec)
	require.Empty(t, ev.Reason)
	require.NoError(t, ev.Err)

	_, err := conn.Issue(context.Background(), contractRequest("AAPL"))
	require.ErrorIs(t, err, protocol.ErrNotConnected)
}

func TestRemoteZeroLengthFrameCloses(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	srv.Handle(message.ReqContractData, func(*gatewaysim.Session, []string) {})
	rec := newRecorder()
	conn, sess := connect(t, srv, rec)

	p, err := conn.Issue(context.Background(), contractRequest("AAPL"))
	require.NoError(t, err)
	require.NoError(t, sess.SendEmpty())

	select {
	case <-conn.Done():
	case <-time.After(waitLimit):
		t.Fatalf("connection did not close")
	}
	_, err = p.Result()
	require.ErrorIs(t, err, protocol.ErrConnectionLost)
	require.Equal(t, StateDisconnected, conn.State())

	ev := waitEvent[Disconnected](t, rec)
	require.NotEmpty(t, ev.Reason)
	require.ErrorIs(t, ev.Err, protocol.ErrConnectionLost)
}

func TestFramingErrorTearsDown(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	rec := newRecorder()
	conn, sess := connect(t, srv, rec)

	require.NoError(t, sess.SendRaw([]byte{0xff, 0xff, 0xff, 0xff}))
	ev := waitEvent[Disconnected](t, rec)
	require.ErrorIs(t, ev.Err, protocol.ErrFraming)
	<-conn.Done()
	require.Equal(t, StateDisconnected, conn.State())
}

func TestStreamingRoutedToDispatcher(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	router := NewRouter()
	ticks := make(chan MessageReceived, 4)
	router.Handle(message.TickPrice, func(m MessageReceived) { ticks <- m })
	conn, _ := connect(t, srv, router)

	id := conn.NextRequestID()
	require.NoError(t, conn.Send(message.ReqMktData.Tag(), "11", strconv.FormatInt(id, 10), "0", "AAPL"))

	select {
	case m := <-ticks:
		got, ok := message.RequestID(m.Kind, m.Frame)
		require.True(t, ok)
		require.Equal(t, id, got)
	case <-time.After(waitLimit):
		t.Fatalf("tick never dispatched")
	}
}

func TestUnknownKindForwarded(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	rec := newRecorder()
	_, sess := connect(t, srv, rec)

	require.NoError(t, sess.Send("777", "1", "future"))
	for {
		m := waitEvent[MessageReceived](t, rec)
		if m.Kind == message.Kind(777) {
			require.False(t, m.Kind.Known())
			require.Equal(t, []string{"777", "1", "future"}, m.Frame.Fields())
			return
		}
	}
}

func TestLateReplyAfterTimeoutDiscarded(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	srv.Handle(message.ReqContractData, func(*gatewaysim.Session, []string) {})
	rec := newRecorder()
	conn, sess := connect(t, srv, rec)

	req := contractRequest("AAPL")
	req.Timeout = 30 * time.Millisecond
	p, err := conn.Issue(context.Background(), req)
	require.NoError(t, err)
	_, err = p.Result()
	require.ErrorIs(t, err, protocol.ErrRequestTimeout)

	id := strconv.FormatInt(p.ID, 10)
	require.NoError(t, sess.Send(message.ContractData.Tag(), id, "AAPL"))
	require.NoError(t, sess.Send(message.ContractDataEnd.Tag(), "1", id))
	require.NoError(t, sess.Send("777", "marker"))

	for {
		m := waitEvent[MessageReceived](t, rec)
		require.NotEqual(t, message.ContractData, m.Kind)
		require.NotEqual(t, message.ContractDataEnd, m.Kind)
		if m.Kind == message.Kind(777) {
			break
		}
	}
	require.Equal(t, StateReady, conn.State())
}

func TestConcurrentConnectOpensOneSocket(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	conn := NewConn(testConfig(), nil, testlog.Start(t))
	t.Cleanup(func() { _ = conn.Disconnect() })
	host, port := srv.Addr()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- conn.Connect(context.Background(), host, port, 3)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, StateReady, conn.State())
	require.Equal(t, 1, srv.Connections())
}

func TestReconnectAfterRemoteClose(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	rec := newRecorder()
	conn, sess := connect(t, srv, rec)
	first := conn.SessionID()
	before := conn.NextRequestID()

	require.NoError(t, sess.Close())
	select {
	case <-conn.Done():
	case <-time.After(waitLimit):
		t.Fatalf("connection did not close")
	}
	ev := waitEvent[Disconnected](t, rec)
	require.Equal(t, first, ev.SessionID)
	require.NotEmpty(t, ev.Reason)

	host, port := srv.Addr()
	require.NoError(t, conn.Connect(context.Background(), host, port, 7))
	require.Equal(t, StateReady, conn.State())
	require.NotEqual(t, first, conn.SessionID())
	require.Greater(t, conn.NextRequestID(), before)
	require.Equal(t, 2, srv.Connections())
}

func TestSendRejectsNullInField(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	conn, _ := connect(t, srv, nil)
	require.ErrorIs(t, conn.Send("49", "bad\x00field"), frame.ErrFieldContainsNull)
	require.Equal(t, StateReady, conn.State())
}

func TestOutboundCountsAndReset(t *testing.T) {
	srv := startGateway(t, gatewaysim.Config{})
	conn, _ := connect(t, srv, nil)
	conn.ResetOutbound()

	require.NoError(t, conn.Send(message.ReqCurrentTime.Tag(), "1"))
	payload, err := frame.Encode(message.ReqCurrentTime.Tag(), "1")
	require.NoError(t, err)
	require.Equal(t, OutboundStats{Messages: 1, Bytes: int64(len(payload))}, conn.Outbound())
	conn.ResetOutbound()
	require.Equal(t, OutboundStats{}, conn.Outbound())
}
