// Package dispatch implements the controller loop.
//
// The Dispatcher polls the messaging service on a fixed interval, drains
// every pending message, authorizes each sender against the operator
// whitelist, and turns recognized commands into chat replies, a local
// actuator mirror update and a radio frame. Every decision is audited and
// published as telemetry.
package dispatch
