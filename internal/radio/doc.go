// Package radio implements the receiver loop.
//
// Handler polls the radio transport, decodes each frame and applies the
// resulting state to the physical output. There is no sender check: anyone
// able to transmit a well-formed frame on the configured frequency can
// actuate the output.
package radio
