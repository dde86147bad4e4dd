// Package audit implements async delivery of security events to sinks.
//
// # Components
//
//   - [Event] — structured security event record with kind, account, origin
//     address, user agent and metadata.
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full
//     semantics.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide
// which events to emit, and it is not the durable trail — the account store
// keeps that. Sinks are a live mirror for external consumers.
package audit
