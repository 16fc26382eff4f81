// Package session owns the gateway session contract above framing.
//
// Ownership boundary:
// - version handshake preamble, server hello and start-API messages
// - request id allocation and request/reply correlation
// - session timeouts and reconnect backoff policy
package session
