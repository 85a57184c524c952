// Package log captures protocol events for playerd.
//
// Protocol capture is separate from operational logging (slog). Events
// record what crossed the wire and how sessions and drivers changed state,
// in a machine-readable trace that player-log can view, filter and export.
//
// # Basic Usage
//
//	// Console, at debug level:
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary file:
//	fl, _ := log.NewFileLogger("/var/log/playerd/server.plog")
//	cfg.ProtocolLogger = fl
//
//	// Both:
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Transport: raw frames (FrameEvent)
//   - Wire: decoded headers (MessageEvent)
//   - Session: connection, auth, access and data mode changes (StateChangeEvent)
//   - Driver: subscription and worker thread changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .plog extension.
package log
