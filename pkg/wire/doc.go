// Package wire defines the CBOR wire format of the remote parameter tree
// protocol.
//
// Messages use CBOR (RFC 8949) with integer keys and travel as
// length-prefixed frames (see package transport).
//
// # Message Types
//
// Every message carries its type under key 0:
//   - Request: client to server, one operation on one path
//   - Response: server to client, matched by message ID
//   - Notification: server to client, message ID 0, pushed for subscribed
//     nodes on the same connection
//   - Control: transport-level ping/pong/close
//
// # Paths
//
// Paths are slices of names relative to the node the server exports. The
// empty path addresses the exported node itself.
//
// # Values
//
// Values travel as a TypedValue tagged union: the primitive kind, an array
// flag and exactly one populated slice.
package wire
