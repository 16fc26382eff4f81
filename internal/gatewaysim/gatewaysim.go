// Package gatewaysim is a gateway simulator that speaks enough of the wire
// protocol to exercise a client: the version handshake, session start, and
// a handful of canned replies. Tests script the rest through Handle and
// Session.Send.
package gatewaysim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/message"
	"github.com/danmuck/ibwire/internal/protocol/session"
)

var ErrBadPreamble = errors.New("gatewaysim: bad preamble")

// Config shapes the gateway's handshake behavior.
type Config struct {
	// Version is announced in the server hello. Zero means ProtocolVersion.
	Version int
	// ServerTime is the hello's second field.
	ServerTime string
	// SilentHandshake leaves the preamble unanswered.
	SilentHandshake bool
	// NextValidID is announced after session start.
	NextValidID int64
	Account     string
}

func (c Config) withDefaults() Config {
	if c.Version == 0 {
		c.Version = session.ProtocolVersion
	}
	if c.ServerTime == "" {
		c.ServerTime = "20240102 09:30:00 EST"
	}
	if c.NextValidID == 0 {
		c.NextValidID = 1
	}
	if c.Account == "" {
		c.Account = "DU0000001"
	}
	return c
}

// Handler answers one client message. fields[0] is the outgoing tag.
type Handler func(s *Session, fields []string)

// Server accepts client connections on a loopback listener.
type Server struct {
	cfg Config
	log zerolog.Logger
	ln  net.Listener

	mu       sync.RWMutex
	handlers map[message.Outgoing]Handler
	sessions map[*Session]struct{}

	accepted chan *Session
	count    atomic.Int64
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// Listen starts a gateway on addr; use "127.0.0.1:0" for tests.
func Listen(addr string, cfg Config, log zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "gatewaysim").Logger(),
		ln:       ln,
		handlers: make(map[message.Outgoing]Handler),
		sessions: make(map[*Session]struct{}),
		accepted: make(chan *Session, 16),
		cancel:   cancel,
	}
	s.Handle(message.ReqCurrentTime, replyCurrentTime)
	s.Handle(message.ReqContractData, replyContractDetails)
	s.Handle(message.ReqMktData, replyMarketData)
	s.wg.Add(1)
	go s.serve(ctx)
	return s, nil
}

// Addr returns the listener host and port.
func (s *Server) Addr() (string, int) {
	tcp := s.ln.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

// Handle replaces the handler for tag.
func (s *Server) Handle(tag message.Outgoing, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[tag] = h
}

// Accepted yields each session once its socket is accepted.
func (s *Server) Accepted() <-chan *Session {
	return s.accepted
}

// Connections counts sessions accepted so far.
func (s *Server) Connections() int {
	return int(s.count.Load())
}

// Close stops accepting, drops every session and waits for them to exit.
func (s *Server) Close() error {
	s.cancel()
	err := s.ln.Close()
	s.mu.RLock()
	for sess := range s.sessions {
		_ = sess.Close()
	}
	s.mu.RUnlock()
	s.wg.Wait()
	return err
}

func (s *Server) serve(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("gatewaysim.Server accept")
			return
		}
		sess := newSession(conn, s.log)
		s.mu.Lock()
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()
		s.count.Add(1)
		select {
		case s.accepted <- sess:
		default:
		}
		s.wg.Add(1)
		go s.handleConn(sess)
	}
}

func (s *Server) handleConn(sess *Session) {
	defer s.wg.Done()
	defer func() {
		_ = sess.Close()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()
	log := sess.log
	reader := bufio.NewReader(sess.conn)

	if err := sess.readPreamble(reader); err != nil {
		log.Warn().Err(err).Msg("gatewaysim.Server.handleConn preamble")
		return
	}
	if s.cfg.SilentHandshake {
		_, _ = io.Copy(io.Discard, reader)
		return
	}
	if err := sess.Send(strconv.Itoa(s.cfg.Version), s.cfg.ServerTime); err != nil {
		return
	}

	for {
		f, err := frame.ReadFrame(reader, frame.DefaultLimits())
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("gatewaysim.Server.handleConn read")
			}
			return
		}
		fields := f.Fields()
		log.Debug().Str("frame", "<-- "+f.String()).Msg("gatewaysim.Server.handleConn")
		if len(fields) == 0 {
			continue
		}
		sess.record(fields)
		tag, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if message.Outgoing(tag) == message.StartAPI {
			s.startSession(sess, fields)
			continue
		}
		s.mu.RLock()
		h := s.handlers[message.Outgoing(tag)]
		s.mu.RUnlock()
		if h != nil {
			h(sess, fields)
		}
	}
}

func (s *Server) startSession(sess *Session, fields []string) {
	if len(fields) >= 3 {
		id, _ := strconv.Atoi(fields[2])
		sess.clientID.Store(int64(id))
	}
	_ = sess.Send(message.NextValidID.Tag(), "1", strconv.FormatInt(s.cfg.NextValidID, 10))
	_ = sess.Send(message.ManagedAccts.Tag(), "1", s.cfg.Account)
	sess.startOnce.Do(func() { close(sess.started) })
}

// Session is one accepted client socket.
type Session struct {
	conn net.Conn
	log  zerolog.Logger

	writeMu  sync.Mutex
	mu       sync.Mutex
	preamble []byte
	received [][]string
	clientID atomic.Int64

	messages  chan []string
	started   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func newSession(conn net.Conn, log zerolog.Logger) *Session {
	return &Session{
		conn:     conn,
		log:      log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		messages: make(chan []string, 256),
		started:  make(chan struct{}),
	}
}

func (s *Session) readPreamble(r *bufio.Reader) error {
	prefix := make([]byte, len(session.APIPrefix))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return err
	}
	if string(prefix) != session.APIPrefix {
		return fmt.Errorf("%w: prefix %q", ErrBadPreamble, prefix)
	}
	f, err := frame.ReadFrame(r, frame.DefaultLimits())
	if err != nil {
		return err
	}
	raw := append(prefix, frame.Prefix(f.Payload())...)
	s.mu.Lock()
	s.preamble = raw
	s.mu.Unlock()
	return nil
}

func (s *Session) record(fields []string) {
	s.mu.Lock()
	s.received = append(s.received, fields)
	s.mu.Unlock()
	select {
	case s.messages <- fields:
	default:
	}
}

// Preamble returns the raw bytes the client sent before the server hello.
func (s *Session) Preamble() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.preamble...)
}

// Received returns every client message after the preamble, in order.
func (s *Session) Received() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.received))
	copy(out, s.received)
	return out
}

// Messages streams client messages as they arrive.
func (s *Session) Messages() <-chan []string {
	return s.messages
}

// Started is closed once the client's session start message arrives.
func (s *Session) Started() <-chan struct{} {
	return s.started
}

func (s *Session) ClientID() int {
	return int(s.clientID.Load())
}

// Send writes one frame to the client.
func (s *Session) Send(fields ...string) error {
	b, err := frame.Encode(fields...)
	if err != nil {
		return err
	}
	return s.write(b)
}

// SendEmpty writes a zero-length frame.
func (s *Session) SendEmpty() error {
	return s.write(frame.Prefix(nil))
}

// SendRaw writes b unframed.
func (s *Session) SendRaw(b []byte) error {
	return s.write(b)
}

func (s *Session) write(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := s.conn.Write(b)
	if err == nil && len(b) >= frame.PrefixLen {
		s.log.Debug().Str("frame", "--> "+frame.New(b[frame.PrefixLen:]).String()).Msg("gatewaysim.Session.write")
	}
	return err
}

// Close drops the client socket.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func replyCurrentTime(s *Session, _ []string) {
	_ = s.Send(message.CurrentTime.Tag(), "1", strconv.FormatInt(time.Now().Unix(), 10))
}

// replyContractDetails answers reqContractDetails: [9, version, reqId, conId,
// symbol, ...]. The symbol NOSUCH yields error 200.
func replyContractDetails(s *Session, fields []string) {
	if len(fields) < 5 {
		return
	}
	reqID, symbol := fields[2], fields[4]
	if symbol == "NOSUCH" {
		_ = s.Send(message.ErrMsg.Tag(), "2", reqID, "200", "No security definition has been found for the request", "")
		return
	}
	_ = s.Send(message.ContractData.Tag(), reqID, symbol, "STK", "", "", "0", "", "SMART", "USD")
	_ = s.Send(message.ContractDataEnd.Tag(), "1", reqID)
}

// replyMarketData streams one price and size tick for reqMktData:
// [1, version, reqId, ...].
func replyMarketData(s *Session, fields []string) {
	if len(fields) < 3 {
		return
	}
	reqID := fields[2]
	_ = s.Send(message.TickPrice.Tag(), "6", reqID, "1", "101.25", "100", "0")
	_ = s.Send(message.TickSize.Tag(), "6", reqID, "0", "100")
}
