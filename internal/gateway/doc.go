// Package gateway runs a client connection to a TWS-style gateway.
//
// A Conn moves through Disconnected, Connecting, AwaitingHandshake, Ready
// and Closing. One goroutine per socket reads frames, completes the version
// handshake, resolves replies to issued requests and hands every other
// message to a Dispatcher. Conn never reconnects on its own; Supervisor
// does that with exponential backoff.
package gateway
