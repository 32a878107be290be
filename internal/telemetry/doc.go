// Package telemetry fans node events out to SSE clients.
//
// Events carry monotonic ids and the last N are buffered so a reconnecting
// client can resume with Last-Event-ID. A heartbeat runs while at least one
// client is connected.
package telemetry
