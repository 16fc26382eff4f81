package gateway

import (
	"slices"
	"sync"

	"github.com/danmuck/ibwire/internal/protocol/frame"
	"github.com/danmuck/ibwire/internal/protocol/message"
)

// Event is delivered to the Dispatcher on the connection's read goroutine,
// in wire order. It is one of Connected, Disconnected or MessageReceived.
type Event interface {
	isEvent()
}

// Connected follows a successful handshake.
type Connected struct {
	SessionID     string
	ServerVersion int
	ServerTime    string
}

// Disconnected is emitted once per connection after teardown completes.
// Reason is empty for a locally requested shutdown.
type Disconnected struct {
	SessionID string
	Reason    string
	Err       error
}

// MessageReceived carries a frame no pending request claimed. Kind may be
// unknown to the catalog, or message.Invalid for a frame with no numeric tag.
type MessageReceived struct {
	Kind  message.Kind
	Frame frame.Frame
}

func (Connected) isEvent()       {}
func (Disconnected) isEvent()    {}
func (MessageReceived) isEvent() {}

// Dispatcher receives connection events. Implementations must not call
// Conn.Connect or Conn.Disconnect from Dispatch.
type Dispatcher interface {
	Dispatch(Event)
}

type DispatcherFunc func(Event)

func (f DispatcherFunc) Dispatch(ev Event) {
	f(ev)
}

// Router is a Dispatcher that fans messages out to per-kind handlers.
type Router struct {
	mu           sync.RWMutex
	handlers     map[message.Kind][]func(MessageReceived)
	unknown      func(MessageReceived)
	fallback     func(MessageReceived)
	onConnect    []func(Connected)
	onDisconnect []func(Disconnected)
}

func NewRouter() *Router {
	return &Router{handlers: make(map[message.Kind][]func(MessageReceived))}
}

// Handle registers fn for kind. Several handlers may share a kind; they run
// in registration order.
func (r *Router) Handle(kind message.Kind, fn func(MessageReceived)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], fn)
}

// HandleUnknown receives kinds missing from the catalog, including
// message.Invalid.
func (r *Router) HandleUnknown(fn func(MessageReceived)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknown = fn
}

// HandleDefault receives known kinds that have no handler.
func (r *Router) HandleDefault(fn func(MessageReceived)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

func (r *Router) OnConnect(fn func(Connected)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnect = append(r.onConnect, fn)
}

func (r *Router) OnDisconnect(fn func(Disconnected)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = append(r.onDisconnect, fn)
}

// Dispatch runs the handlers registered for ev. Handlers are snapshotted
// first, so a handler may register others; those see later events.
func (r *Router) Dispatch(ev Event) {
	switch ev := ev.(type) {
	case Connected:
		r.mu.RLock()
		hooks := slices.Clone(r.onConnect)
		r.mu.RUnlock()
		for _, fn := range hooks {
			fn(ev)
		}
	case Disconnected:
		r.mu.RLock()
		hooks := slices.Clone(r.onDisconnect)
		r.mu.RUnlock()
		for _, fn := range hooks {
			fn(ev)
		}
	case MessageReceived:
		r.mu.RLock()
		handlers := slices.Clone(r.handlers[ev.Kind])
		unknown, fallback := r.unknown, r.fallback
		r.mu.RUnlock()
		if !ev.Kind.Known() {
			if unknown != nil {
				unknown(ev)
			}
			return
		}
		if len(handlers) == 0 {
			if fallback != nil {
				fallback(ev)
			}
			return
		}
		for _, fn := range handlers {
			fn(ev)
		}
	}
}
