// Package protocol owns the gateway wire contract.
//
// Ownership boundary:
// - error taxonomy shared by every layer (this package)
// - length-prefixed framing (frame)
// - message kind catalog and classification (message)
// - handshake and request correlation (session)
package protocol
