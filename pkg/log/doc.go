// Package log provides structured protocol event logging for the Helki
// synchronization engine.
//
// Events are captured at three layers:
//
//   - Transport: raw long-poll request/response bodies
//   - Wire: classified Engine.IO packets
//   - Service: connection state changes and absorbed errors
//
// Applications receive events through the [Logger] interface. Several
// implementations are provided:
//
//   - [NoopLogger]: discards everything (the default)
//   - [SlogAdapter]: human-readable output via log/slog
//   - [FileLogger]: compact CBOR capture files for offline analysis
//   - [MultiLogger]: fan-out to several sinks
//
// CBOR capture files use integer keys and can be read back with
// [Reader], optionally filtered by connection, layer, or time range.
package log
