// Package fake provides an in-memory radio medium for tests and local runs.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/radio-control/lorabridge/internal/adapter"
)

// Medium is a shared broadcast channel. A frame sent by one Radio is queued
// on every other Radio joined to the same Medium.
type Medium struct {
	mu       sync.Mutex
	radios   []*Radio
	rssi     int
	snr      int
	dropNext int
}

// NewMedium creates a medium reporting a fixed signal strength.
func NewMedium() *Medium {
	return &Medium{rssi: -42, snr: 9}
}

// SetSignal sets the RSSI and SNR attached to delivered frames.
func (m *Medium) SetSignal(rssi, snr int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssi, m.snr = rssi, snr
}

// DropNext discards the next n transmissions.
func (m *Medium) DropNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropNext = n
}

// Join attaches a new Radio to the medium.
func (m *Medium) Join(model string) *Radio {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Radio{
		AdapterBase: adapter.AdapterBase{
			Model:       model,
			FrequencyHz: adapter.DefaultFrequencyHz,
			Status:      "online",
		},
		medium: m,
	}
	m.radios = append(m.radios, r)
	return r
}

func (m *Medium) broadcast(from *Radio, payload []byte) {
	m.mu.Lock()
	if m.dropNext > 0 {
		m.dropNext--
		m.mu.Unlock()
		return
	}
	peers := make([]*Radio, 0, len(m.radios))
	for _, r := range m.radios {
		if r != from {
			peers = append(peers, r)
		}
	}
	rssi, snr := m.rssi, m.snr
	m.mu.Unlock()

	for _, r := range peers {
		r.Inject(payload, rssi, snr)
	}
}

// Radio implements adapter.Transport on a Medium.
type Radio struct {
	adapter.AdapterBase

	medium *Medium

	mu    sync.Mutex
	inbox []adapter.Frame
	sent  [][]byte

	// Error simulation
	simulateErrors bool
	errorType      string
}

var _ adapter.Transport = (*Radio)(nil)

// Send broadcasts payload to the other radios on the medium.
func (r *Radio) Send(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	if r.simulateErrors {
		errType := r.errorType
		r.mu.Unlock()
		return adapter.NormalizeVendorError(getSimulatedError(errType), nil)
	}
	r.sent = append(r.sent, append([]byte(nil), payload...))
	r.mu.Unlock()

	if r.medium != nil {
		r.medium.broadcast(r, payload)
	}
	return nil
}

// PollReceive pops the oldest queued frame.
func (r *Radio) PollReceive() (adapter.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.inbox) == 0 {
		return adapter.Frame{}, false
	}
	frame := r.inbox[0]
	r.inbox = r.inbox[1:]
	return frame, true
}

// Inject queues a raw frame as if it had been received over the air.
func (r *Radio) Inject(payload []byte, rssi, snr int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox = append(r.inbox, adapter.Frame{
		Payload:    append([]byte(nil), payload...),
		RSSI:       rssi,
		SNR:        snr,
		ReceivedAt: time.Now(),
	})
}

// Sent returns copies of every payload passed to Send.
func (r *Radio) Sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.sent))
	copy(out, r.sent)
	return out
}

// Pending returns the number of queued frames.
func (r *Radio) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inbox)
}

// SetErrorSimulation makes Send fail with the given normalized code.
func (r *Radio) SetErrorSimulation(errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulateErrors = true
	r.errorType = errorType
}

// DisableErrorSimulation restores normal Send behaviour.
func (r *Radio) DisableErrorSimulation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulateErrors = false
	r.errorType = ""
}

func getSimulatedError(errorType string) error {
	switch errorType {
	case "INVALID_RANGE":
		return fmt.Errorf("INVALID_RANGE: simulated range error")
	case "BUSY":
		return fmt.Errorf("BUSY: simulated busy error")
	case "UNAVAILABLE":
		return fmt.Errorf("UNAVAILABLE: simulated unavailable error")
	default:
		return fmt.Errorf("INTERNAL: simulated internal error")
	}
}
