// Package audit implements the append-only decision trail of a node.
//
// Every authorization decision, actuation, transmit fault and received frame
// is written as one JSON line with actor, action, parameters, outcome,
// normalized code, latency and a correlation id. Files rotate by size.
package audit
