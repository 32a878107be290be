// Package actuator models the charging relay output of a node.
//
// A node owns a single digital output with active-low wiring: driving the
// pin low engages the relay. The same pin abstraction backs the diagnostic
// indicator LED, which must never be wired to the relay pin.
package actuator
