package adapter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/radio-control/lorabridge/internal/actuator"
)

// DefaultFrequencyHz is the carrier used by both nodes.
const DefaultFrequencyHz = 433_000_000

// Frame is one received transmission.
type Frame struct {
	Payload    []byte    `json:"payload"`
	RSSI       int       `json:"rssi"`
	SNR        int       `json:"snr"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Transport is the byte-oriented radio link.
type Transport interface {
	// Send transmits payload as a single frame. It does not wait for any
	// acknowledgement from a peer.
	Send(ctx context.Context, payload []byte) error

	// PollReceive returns the next pending frame, or false immediately when
	// nothing has been received.
	PollReceive() (Frame, bool)
}

// AdapterBase provides common descriptive fields for transport implementations.
type AdapterBase struct {
	// Model identifies the modem or simulator
	Model string

	// FrequencyHz is the configured carrier frequency
	FrequencyHz int64

	// Status indicates the current link status
	Status string
}

// GetModel returns the modem model.
func (a *AdapterBase) GetModel() string {
	return a.Model
}

// GetFrequencyHz returns the configured carrier frequency.
func (a *AdapterBase) GetFrequencyHz() int64 {
	return a.FrequencyHz
}

// GetStatus returns the link status.
func (a *AdapterBase) GetStatus() string {
	return a.Status
}

// SetStatus updates the link status.
func (a *AdapterBase) SetStatus(status string) {
	a.Status = status
}

// Describer is implemented by transports that embed AdapterBase.
type Describer interface {
	GetModel() string
	GetFrequencyHz() int64
	GetStatus() string
}

// InitError reports a radio set-up failure. The node cannot operate without
// its radio; the entry point decides whether to halt, exit or alert.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("radio init failed at %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Indicated wraps a Transport and drives a diagnostic LED: on after a frame
// has been read, off after an empty poll. The LED is feedback only.
type Indicated struct {
	Transport
	led actuator.Output
	lit bool
	set bool
}

// WithIndicator returns t with led feedback on PollReceive.
func WithIndicator(t Transport, led actuator.Output) *Indicated {
	return &Indicated{Transport: t, led: led}
}

// PollReceive delegates to the wrapped transport and updates the LED.
func (i *Indicated) PollReceive() (Frame, bool) {
	frame, ok := i.Transport.PollReceive()
	if i.set && i.lit == ok {
		return frame, ok
	}
	level := actuator.Disengaged
	if ok {
		level = actuator.Engaged
	}
	if err := i.led.Set(level); err != nil {
		log.Printf("indicator: %v", err)
		return frame, ok
	}
	i.lit, i.set = ok, true
	return frame, ok
}

// Unwrap returns the wrapped transport.
func (i *Indicated) Unwrap() Transport {
	return i.Transport
}

// ErrorReporter is implemented by transports that record modem errors
// reported outside a Send call.
type ErrorReporter interface {
	LastError() error
}

// Describe returns the Describer behind t, looking through wrappers.
func Describe(t Transport) (Describer, bool) {
	return lookup[Describer](t)
}

// LastError returns the error recorded by the ErrorReporter behind t, or nil.
func LastError(t Transport) error {
	if r, ok := lookup[ErrorReporter](t); ok {
		return r.LastError()
	}
	return nil
}

func lookup[T any](t Transport) (T, bool) {
	for t != nil {
		if v, ok := t.(T); ok {
			return v, true
		}
		w, ok := t.(interface{ Unwrap() Transport })
		if !ok {
			break
		}
		t = w.Unwrap()
	}
	var zero T
	return zero, false
}
