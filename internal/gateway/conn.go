package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/observability"
	"github.com/danmuck/ibwire/internal/protocol"
	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/session"
)

// OutboundStats counts what this connection has written since the last
// reset. Diagnostic only.
type OutboundStats struct {
	Messages int64
	Bytes    int64
}

// Conn is a client connection to one gateway. It can be connected again
// after a disconnect; request identifiers keep increasing across
// connections.
type Conn struct {
	cfg  session.Config
	disp Dispatcher
	log  zerolog.Logger
	ids  *session.Sequence

	// opMu serializes Connect and Disconnect.
	opMu sync.Mutex

	// writeMu serializes socket writes. Lock order is writeMu then mu.
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	sock       net.Conn
	sessionID  string
	connLog    zerolog.Logger
	corr       *session.Correlator
	version    int
	serverTime string
	done       chan struct{}
	// closing is set when teardown was requested locally; closeCause is
	// then the reported reason, nil for a clean shutdown.
	closing    bool
	closeCause error

	outMessages atomic.Int64
	outBytes    atomic.Int64
}

// NewConn returns a disconnected Conn. A nil dispatcher drops all events.
func NewConn(cfg session.Config, disp Dispatcher, log zerolog.Logger) *Conn {
	cfg = cfg.WithDefaults()
	if disp == nil {
		disp = DispatcherFunc(func(Event) {})
	}
	done := make(chan struct{})
	close(done)
	return &Conn{
		cfg:   cfg,
		disp:  disp,
		log:   log,
		ids:   session.NewSequence(cfg.FirstRequestID),
		state: StateDisconnected,
		done:  done,
	}
}

// Connect dials host:port, performs the version handshake and starts the
// API session for clientID. It returns once the connection is Ready or has
// failed and been torn down. Connecting an already ready Conn is a no-op.
func (c *Conn) Connect(ctx context.Context, host string, port int, clientID int) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	state, prev := c.state, c.done
	c.mu.Unlock()
	if state == StateReady {
		return nil
	}
	if state != StateDisconnected {
		// A remote close is still tearing the previous socket down.
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	start := time.Now()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	sessionID := uuid.NewString()
	log := c.log.With().Str("session_id", sessionID).Str("addr", addr).Int("client_id", clientID).Logger()

	c.mu.Lock()
	c.transitionLocked(StateConnecting)
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	sock, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.mu.Lock()
		c.transitionLocked(StateDisconnected)
		c.mu.Unlock()
		observability.RecordHandshake(time.Since(start), false)
		log.Warn().Err(err).Msg("gateway.Conn.Connect dial failed")
		return fmt.Errorf("gateway: dial %s: %w", addr, err)
	}

	done := make(chan struct{})
	handshake := make(chan error, 1)
	c.mu.Lock()
	c.sock = sock
	c.sessionID = sessionID
	c.connLog = log
	c.done = done
	c.closing = false
	c.closeCause = nil
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.writeLocked(sock, session.EncodePreamble(c.cfg.MinVersion, c.cfg.MaxVersion))
	log.Debug().Str("frame", "--> API "+session.VersionRange(c.cfg.MinVersion, c.cfg.MaxVersion)).Msg("gateway.Conn write")
	c.mu.Lock()
	if err == nil {
		c.transitionLocked(StateAwaitingHandshake)
	} else {
		c.sock = nil
		c.transitionLocked(StateDisconnected)
	}
	c.mu.Unlock()
	c.writeMu.Unlock()
	if err != nil {
		_ = sock.Close()
		close(done)
		observability.RecordHandshake(time.Since(start), false)
		return fmt.Errorf("%w: send preamble: %w", protocol.ErrHandshakeFailed, err)
	}

	go c.readLoop(sock, clientID, done, handshake, log)

	timer := time.NewTimer(c.cfg.HandshakeTimeout)
	defer timer.Stop()
	select {
	case err = <-handshake:
	case <-timer.C:
		err = fmt.Errorf("%w: no server hello within %s", protocol.ErrHandshakeFailed, c.cfg.HandshakeTimeout)
		c.shutdown(err)
	case <-ctx.Done():
		err = ctx.Err()
		c.shutdown(fmt.Errorf("%w: %w", protocol.ErrHandshakeFailed, err))
	}
	observability.RecordHandshake(time.Since(start), err == nil)
	if err != nil {
		<-done
		log.Warn().Err(err).Msg("gateway.Conn.Connect handshake failed")
		return err
	}
	log.Info().Int("server_version", c.ServerVersion()).Msg("gateway.Conn.Connect ready")
	return nil
}

// Disconnect shuts the connection down and waits until the read loop has
// exited and every pending request has failed. The Disconnected event
// carries an empty reason.
func (c *Conn) Disconnect() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	<-c.shutdown(nil)
	return nil
}

// shutdown starts a local teardown and returns the channel closed when it
// completes. It does not wait.
func (c *Conn) shutdown(cause error) <-chan struct{} {
	c.mu.Lock()
	done := c.done
	if c.state != StateAwaitingHandshake && c.state != StateReady {
		c.mu.Unlock()
		return done
	}
	c.transitionLocked(StateClosing)
	c.closing = true
	c.closeCause = cause
	sock := c.sock
	c.mu.Unlock()

	if tcp, ok := sock.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	_ = sock.Close()
	return done
}

// abort tears the connection down after a failed write. The read loop
// reports cause.
func (c *Conn) abort(cause error) {
	c.shutdown(cause)
}

// Send writes one message. It fails with protocol.ErrNotConnected unless the
// connection is Ready.
func (c *Conn) Send(fields ...string) error {
	b, err := frame.Encode(fields...)
	if err != nil {
		return err
	}
	if uint64(len(b)-frame.PrefixLen) > uint64(c.cfg.MaxPayloadBytes) {
		return frame.ErrPayloadTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	state, sock, log := c.state, c.sock, c.connLog
	c.mu.Unlock()
	if state != StateReady {
		return protocol.ErrNotConnected
	}
	if err := c.writeFrameLocked(sock, b, log); err != nil {
		c.abort(err)
		return fmt.Errorf("%w: %w", protocol.ErrConnectionLost, err)
	}
	return nil
}

// writeFrameLocked writes one encoded frame and traces it. Callers hold
// writeMu.
func (c *Conn) writeFrameLocked(sock net.Conn, b []byte, log zerolog.Logger) error {
	if err := c.writeLocked(sock, b); err != nil {
		return err
	}
	observability.RecordFrame(observability.Outbound, len(b))
	if e := log.Debug(); e.Enabled() {
		e.Str("frame", "--> "+frame.New(b[frame.PrefixLen:]).String()).Msg("gateway.Conn write")
	}
	return nil
}

// writeLocked writes b with the configured deadline. Callers hold writeMu.
func (c *Conn) writeLocked(sock net.Conn, b []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if _, err := sock.Write(b); err != nil {
		return err
	}
	c.outMessages.Add(1)
	c.outBytes.Add(int64(len(b)))
	return nil
}

// Issue sends req through the correlator of the current connection. A
// deadline on ctx bounds the request when req sets no timeout of its own.
func (c *Conn) Issue(ctx context.Context, req session.Request) (*session.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()
	if corr == nil {
		return nil, protocol.ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok && req.Timeout == 0 {
		req.Timeout = time.Until(deadline)
		if req.Timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	return corr.Issue(req, c.Send)
}

// NextRequestID allocates an identifier for a request sent with Send whose
// replies are consumed through the Dispatcher.
func (c *Conn) NextRequestID() int64 {
	return c.ids.Next()
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ServerVersion is the negotiated version, or zero when not ready.
func (c *Conn) ServerVersion() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// ServerTime is the connection time reported in the server hello.
func (c *Conn) ServerTime() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverTime
}

// SessionID identifies the current or most recent socket in logs and events.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Done is closed once the current connection is fully torn down. It is
// already closed when the Conn has never connected.
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Conn) Outbound() OutboundStats {
	return OutboundStats{Messages: c.outMessages.Load(), Bytes: c.outBytes.Load()}
}

func (c *Conn) ResetOutbound() {
	c.outMessages.Store(0)
	c.outBytes.Store(0)
}

func (c *Conn) PendingCount() int {
	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()
	if corr == nil {
		return 0
	}
	return corr.Len()
}

// Pending lists the requests awaiting replies on the current connection.
func (c *Conn) Pending() []session.PendingInfo {
	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()
	if corr == nil {
		return nil
	}
	return corr.List()
}

// transitionLocked moves to the next state. Callers hold mu.
func (c *Conn) transitionLocked(to State) bool {
	from := c.state
	if !CanTransition(from, to) {
		c.log.Error().Stringer("from", from).Stringer("to", to).Msg("gateway.Conn illegal state transition refused")
		return false
	}
	c.state = to
	observability.RecordStateTransition(from.String(), to.String())
	c.log.Debug().Str("session_id", c.sessionID).Stringer("from", from).Stringer("to", to).Msg("gateway.Conn state")
	return true
}

// reason renders err for a Disconnected event.
func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func lostError(cause error) error {
	if cause == nil {
		return protocol.ErrConnectionLost
	}
	if errors.Is(cause, protocol.ErrConnectionLost) {
		return cause
	}
	return fmt.Errorf("%w: %w", protocol.ErrConnectionLost, cause)
}
