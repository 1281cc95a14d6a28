// Package transport moves encoded protocol messages between a tree server
// and the clients that mount it.
//
// A connection is plain TCP or TLS 1.3. The stream is cut into frames: a
// 4-byte big-endian length followed by that many bytes of CBOR. Ping, pong
// and close are control messages handled here; everything else is passed
// to the handler untouched.
//
// Clients ping every DefaultPingInterval. A pong that does not arrive
// within DefaultPongTimeout counts as missed, and DefaultMaxMissedPongs
// missed pongs in a row close the connection.
package transport
