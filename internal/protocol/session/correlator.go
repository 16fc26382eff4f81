package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/observability"
	"github.com/danmuck/ibwire/internal/protocol"
	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/message"
)

var ErrInvalidRequest = errors.New("session: invalid request")

// Request outcomes reported to metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeTimeout   = "timeout"
	OutcomeCanceled  = "canceled"
	OutcomeLost      = "connection_lost"
	OutcomeSendError = "send_error"
)

// RetiredLimit bounds how many dropped request ids are remembered for
// discarding late replies. Older ids are forgotten first.
const RetiredLimit = 1024

// Sequence hands out request identifiers. It is shared by every connection a
// client makes, so identifiers are never reused while the process lives.
type Sequence struct {
	next atomic.Int64
}

func NewSequence(first int64) *Sequence {
	s := &Sequence{}
	s.next.Store(first)
	return s
}

func (s *Sequence) Next() int64 {
	return s.next.Add(1) - 1
}

// Request is one outbound request awaiting replies. The allocated identifier
// is written into Fields[IDField] before sending.
type Request struct {
	Fields  []string
	IDField int
	// Timeout overrides the correlator default; negative disables it.
	Timeout time.Duration
}

// SendFunc writes one encoded request on the wire.
type SendFunc func(fields ...string) error

// RequestError is a gateway error message that ended a request.
type RequestError struct {
	ID      int64
	Code    int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("session: request %d rejected code=%d msg=%q", e.ID, e.Code, e.Message)
}

// Pending tracks one issued request until its terminal reply, timeout,
// cancellation or disconnect.
type Pending struct {
	ID       int64
	IssuedAt time.Time
	Deadline time.Time

	owner  *Correlator
	done   chan struct{}
	frames []frame.Frame
	err    error
	timer  *time.Timer
}

// Done is closed once the request is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result blocks until resolution and returns the frames received so far
// together with the resolution error, if any.
func (p *Pending) Result() ([]frame.Frame, error) {
	<-p.done
	return p.frames, p.err
}

// Wait is Result bounded by ctx. When ctx ends first the request is canceled.
func (p *Pending) Wait(ctx context.Context) ([]frame.Frame, error) {
	select {
	case <-p.done:
		return p.frames, p.err
	case <-ctx.Done():
		if p.Cancel() {
			return nil, ctx.Err()
		}
		return p.Result()
	}
}

// Cancel drops the request locally. Nothing is sent to the gateway; replies
// that still arrive are discarded. It reports whether the request was still
// pending.
func (p *Pending) Cancel() bool {
	return p.owner.resolve(p.ID, OutcomeCanceled, protocol.ErrRequestCanceled)
}

// PendingInfo is a point-in-time view of one pending request.
type PendingInfo struct {
	ID       int64
	IssuedAt time.Time
	Deadline time.Time
	Frames   int
}

// Correlator matches inbound frames to pending requests by request id.
// One correlator serves one ready connection; FailAll closes it for good.
type Correlator struct {
	mu      sync.Mutex
	ids     *Sequence
	timeout time.Duration
	log     zerolog.Logger
	pending map[int64]*Pending
	// retired ids were dropped before their terminal reply; late frames for
	// them are discarded instead of reaching the dispatcher. retiredOrder
	// is a ring holding them oldest first.
	retired      map[int64]struct{}
	retiredOrder []int64
	retiredHead  int
	closed       error
}

func NewCorrelator(ids *Sequence, defaultTimeout time.Duration, log zerolog.Logger) *Correlator {
	if ids == nil {
		ids = NewSequence(1)
	}
	return &Correlator{
		ids:     ids,
		timeout: defaultTimeout,
		log:     log,
		pending: make(map[int64]*Pending),
		retired: make(map[int64]struct{}),
	}
}

// retireLocked remembers id, forgetting the oldest retired id once
// RetiredLimit are held. Callers hold mu.
func (c *Correlator) retireLocked(id int64) {
	if len(c.retiredOrder) < RetiredLimit {
		c.retiredOrder = append(c.retiredOrder, id)
	} else {
		delete(c.retired, c.retiredOrder[c.retiredHead])
		c.retiredOrder[c.retiredHead] = id
		c.retiredHead = (c.retiredHead + 1) % RetiredLimit
	}
	c.retired[id] = struct{}{}
}

// Issue registers req under a fresh identifier and sends it. The entry is
// registered before the send so an immediate reply cannot be missed.
func (c *Correlator) Issue(req Request, send SendFunc) (*Pending, error) {
	if req.IDField < 0 || req.IDField >= len(req.Fields) {
		return nil, fmt.Errorf("%w: id field %d out of range for %d fields", ErrInvalidRequest, req.IDField, len(req.Fields))
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}

	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		return nil, err
	}
	id := c.ids.Next()
	now := time.Now()
	p := &Pending{
		ID:       id,
		IssuedAt: now,
		owner:    c,
		done:     make(chan struct{}),
	}
	if timeout > 0 {
		p.Deadline = now.Add(timeout)
		p.timer = time.AfterFunc(timeout, func() { c.expire(id, timeout) })
	}
	c.pending[id] = p
	c.mu.Unlock()
	observability.AddPendingRequests(1)

	fields := make([]string, len(req.Fields))
	copy(fields, req.Fields)
	fields[req.IDField] = strconv.FormatInt(id, 10)
	if err := send(fields...); err != nil {
		c.resolve(id, OutcomeSendError, err)
		return nil, err
	}
	return p, nil
}

// Resolve routes f to the pending request named by its request id field and
// reports whether the frame was consumed. Unclaimed frames belong to the
// dispatcher.
func (c *Correlator) Resolve(kind message.Kind, f frame.Frame) bool {
	id, ok := message.RequestID(kind, f)
	if !ok {
		return false
	}
	terminal := message.IsTerminal(kind)
	var reqErr error
	if kind == message.ErrMsg {
		notice, err := message.ParseErrorNotice(f)
		if err == nil && !message.IsWarningCode(notice.Code) {
			terminal = true
			reqErr = &RequestError{ID: id, Code: notice.Code, Message: notice.Message}
		}
	}

	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		_, late := c.retired[id]
		if late && terminal {
			delete(c.retired, id)
		}
		c.mu.Unlock()
		if late {
			c.log.Debug().Int64("req_id", id).Stringer("kind", kind).Msg("session.Correlator.Resolve late reply discarded")
		}
		return late
	}
	p.frames = append(p.frames, f)
	if !terminal {
		c.mu.Unlock()
		return true
	}
	delete(c.pending, id)
	c.completeLocked(p, reqErr)
	c.mu.Unlock()

	outcome := OutcomeCompleted
	if reqErr != nil {
		outcome = OutcomeRejected
	}
	observability.AddPendingRequests(-1)
	observability.RecordRequest(outcome, time.Since(p.IssuedAt))
	return true
}

// Cancel resolves request id with ErrRequestCanceled.
func (c *Correlator) Cancel(id int64) bool {
	return c.resolve(id, OutcomeCanceled, protocol.ErrRequestCanceled)
}

// FailAll resolves every pending request with err and closes the correlator;
// later Issue calls fail with ErrNotConnected. It returns the number of
// requests failed.
func (c *Correlator) FailAll(err error) int {
	c.mu.Lock()
	if c.closed == nil {
		c.closed = protocol.ErrNotConnected
	}
	failed := make([]*Pending, 0, len(c.pending))
	for id, p := range c.pending {
		delete(c.pending, id)
		c.completeLocked(p, err)
		failed = append(failed, p)
	}
	clear(c.retired)
	c.retiredOrder = nil
	c.retiredHead = 0
	c.mu.Unlock()

	for _, p := range failed {
		observability.AddPendingRequests(-1)
		observability.RecordRequest(OutcomeLost, time.Since(p.IssuedAt))
	}
	return len(failed)
}

// Len returns the number of pending requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// List returns pending requests ordered by id.
func (c *Correlator) List() []PendingInfo {
	c.mu.Lock()
	out := make([]PendingInfo, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, PendingInfo{
			ID:       p.ID,
			IssuedAt: p.IssuedAt,
			Deadline: p.Deadline,
			Frames:   len(p.frames),
		})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Correlator) expire(id int64, after time.Duration) {
	if c.resolve(id, OutcomeTimeout, fmt.Errorf("%w: request %d after %s", protocol.ErrRequestTimeout, id, after)) {
		c.log.Warn().Int64("req_id", id).Dur("timeout", after).Msg("session.Correlator request timed out")
	}
}

// resolve removes id and completes it with err. The id is retired so a late
// reply is recognized and dropped, unless the send failed and nothing reached
// the wire.
func (c *Correlator) resolve(id int64, outcome string, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, id)
	if outcome != OutcomeSendError {
		c.retireLocked(id)
	}
	c.completeLocked(p, err)
	c.mu.Unlock()

	observability.AddPendingRequests(-1)
	observability.RecordRequest(outcome, time.Since(p.IssuedAt))
	return true
}

func (c *Correlator) completeLocked(p *Pending, err error) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.err = err
	close(p.done)
}
