package gateway

import (
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/observability"
	"github.com/danmuck/ibwire/internal/protocol"
	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/message"
	"github.com/danmuck/ibwire/internal/protocol/session"
)

var (
	errRemoteClosed = fmt.Errorf("%w: gateway sent zero-length frame", protocol.ErrConnectionLost)
	errRemoteEOF    = fmt.Errorf("%w: gateway closed the socket", protocol.ErrConnectionLost)
)

// readLoop owns sock until it returns. It is the only reader of the socket
// and the only writer of the decoder.
func (c *Conn) readLoop(sock net.Conn, clientID int, done chan struct{}, handshake chan<- error, log zerolog.Logger) {
	ready, err := c.serve(sock, clientID, handshake, log)
	c.finish(sock, done, handshake, ready, err, log)
}

func (c *Conn) serve(sock net.Conn, clientID int, handshake chan<- error, log zerolog.Logger) (bool, error) {
	dec := frame.NewDecoder(c.cfg.Limits())
	buf := make([]byte, c.cfg.ReadBufferSize)
	var corr *session.Correlator
	for {
		n, readErr := sock.Read(buf)
		if n > 0 {
			for f, err := range dec.Push(buf[:n]) {
				if err != nil {
					return corr != nil, err
				}
				observability.RecordFrame(observability.Inbound, frame.PrefixLen+f.Len())
				if f.IsEmpty() {
					return corr != nil, errRemoteClosed
				}
				if e := log.Debug(); e.Enabled() {
					e.Str("frame", "<-- "+f.String()).Msg("gateway.Conn read")
				}
				if corr == nil {
					corr, err = c.completeHandshake(sock, f, clientID, log)
					if err != nil {
						return false, err
					}
					handshake <- nil
				} else {
					c.route(corr, f, log)
				}
				runtime.Gosched()
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return corr != nil, errRemoteEOF
			}
			return corr != nil, readErr
		}
	}
}

// completeHandshake validates the server hello, moves to Ready and sends the
// session start message before any other writer can reach the socket.
func (c *Conn) completeHandshake(sock net.Conn, f frame.Frame, clientID int, log zerolog.Logger) (*session.Correlator, error) {
	hello, err := session.ParseServerHello(f, session.ProtocolVersion)
	if err != nil {
		return nil, err
	}
	payload, err := frame.Encode(session.StartAPIFields(clientID, c.cfg.OptionalCapabilities)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrHandshakeFailed, err)
	}
	corr := session.NewCorrelator(c.ids, c.cfg.RequestTimeout, log)

	c.writeMu.Lock()
	c.mu.Lock()
	if c.state != StateAwaitingHandshake {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return nil, net.ErrClosed
	}
	c.transitionLocked(StateReady)
	c.corr = corr
	c.version = hello.Version
	c.serverTime = hello.ConnectTime
	sessionID := c.sessionID
	c.mu.Unlock()
	err = c.writeFrameLocked(sock, payload, log)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: send start api: %w", protocol.ErrHandshakeFailed, err)
	}

	c.disp.Dispatch(Connected{
		SessionID:     sessionID,
		ServerVersion: hello.Version,
		ServerTime:    hello.ConnectTime,
	})
	return corr, nil
}

// route offers f to the correlator and hands anything unclaimed to the
// dispatcher.
func (c *Conn) route(corr *session.Correlator, f frame.Frame, log zerolog.Logger) {
	kind, err := message.Classify(f)
	if err != nil && !errors.Is(err, protocol.ErrUnknownMessageKind) {
		log.Warn().Err(err).Str("frame", f.String()).Msg("gateway.Conn.route malformed frame")
	}
	if kind.Known() && corr.Resolve(kind, f) {
		return
	}
	c.disp.Dispatch(MessageReceived{Kind: kind, Frame: f})
}

// finish completes teardown once the read loop stops: the socket is closed,
// pending requests fail in the same critical section as the move to
// Disconnected, and the Disconnected event is dispatched before Done closes.
func (c *Conn) finish(sock net.Conn, done chan struct{}, handshake chan<- error, ready bool, err error, log zerolog.Logger) {
	c.mu.Lock()
	if c.state == StateAwaitingHandshake || c.state == StateReady {
		c.transitionLocked(StateClosing)
	}
	if c.closing {
		err = c.closeCause
	}
	c.mu.Unlock()
	_ = sock.Close()

	if !ready && !errors.Is(err, protocol.ErrHandshakeFailed) {
		if err == nil {
			err = protocol.ErrHandshakeFailed
		} else {
			err = fmt.Errorf("%w: %w", protocol.ErrHandshakeFailed, err)
		}
	}

	c.mu.Lock()
	failed := 0
	if c.corr != nil {
		failed = c.corr.FailAll(lostError(err))
		c.corr = nil
	}
	c.sock = nil
	c.version = 0
	c.serverTime = ""
	c.transitionLocked(StateDisconnected)
	sessionID := c.sessionID
	c.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Int("failed_requests", failed).Msg("gateway.Conn disconnected")
	} else {
		log.Info().Int("failed_requests", failed).Msg("gateway.Conn disconnected")
	}
	if !ready {
		select {
		case handshake <- err:
		default:
		}
	}
	c.disp.Dispatch(Disconnected{SessionID: sessionID, Reason: reason(err), Err: err})
	close(done)
}
