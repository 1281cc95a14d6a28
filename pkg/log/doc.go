// Package log provides structured protocol capture for the remote tree
// protocol.
//
// Operational logging goes through log/slog. This package records what
// crossed the wire: frames at the transport layer, decoded requests,
// responses and notifications at the wire layer, and handshake or
// subscription changes at the service layer.
//
// # Basic Usage
//
//	// Console capture while debugging
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture for paramctl log
//	fl, _ := log.NewFileLogger("/var/log/paramd/protocol.plog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded Events with integer keys.
// Reader iterates them with an optional Filter.
package log
