// Package node holds the start-up wiring shared by the controller and
// receiver entry points: process logging, radio and output selection,
// the audit trail, the status API and the radio failure policy.
package node
