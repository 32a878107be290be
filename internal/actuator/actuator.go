package actuator

import (
	"fmt"
	"sync"
)

// State is the binary output of the relay.
type State int

const (
	Disengaged State = iota
	Engaged
)

// String returns the lowercase state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case Engaged:
		return "engaged"
	case Disengaged:
		return "disengaged"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Output drives an actuator to a state.
type Output interface {
	Set(state State) error
}

// Pin is a single digital line. High is logic level 1.
type Pin interface {
	Write(high bool) error
}

// ActiveLow adapts a Pin so that Engaged drives the line low.
type ActiveLow struct {
	pin Pin
}

// NewActiveLow wraps pin with active-low semantics.
func NewActiveLow(pin Pin) *ActiveLow {
	return &ActiveLow{pin: pin}
}

// Set drives the pin low for Engaged and high for Disengaged.
func (a *ActiveLow) Set(state State) error {
	if err := a.pin.Write(state != Engaged); err != nil {
		return fmt.Errorf("failed to drive pin to %s: %w", state, err)
	}
	return nil
}

// Memory is an in-process Output that records every write.
type Memory struct {
	mu      sync.Mutex
	state   State
	history []State
}

// NewMemory creates a Memory output starting Disengaged.
func NewMemory() *Memory {
	return &Memory{state: Disengaged}
}

// Set records state.
func (m *Memory) Set(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.history = append(m.history, state)
	return nil
}

// State returns the last written state.
func (m *Memory) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Writes returns the number of Set calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// MemoryPin is an in-process Pin.
type MemoryPin struct {
	mu     sync.Mutex
	high   bool
	writes int
}

// Write records the level.
func (p *MemoryPin) Write(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = high
	p.writes++
	return nil
}

// High reports the last written level.
func (p *MemoryPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

// Mirror tracks the last state requested through it. The controller uses it
// as an optimistic copy of the receiver's relay; it is read concurrently by
// the status API.
type Mirror struct {
	mu    sync.RWMutex
	out   Output
	state State
}

// NewMirror wraps out. out may be nil when no local indicator is wired.
func NewMirror(out Output) *Mirror {
	return &Mirror{out: out, state: Disengaged}
}

// Set stores state and forwards it to the wrapped output.
func (m *Mirror) Set(state State) error {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	if m.out == nil {
		return nil
	}
	return m.out.Set(state)
}

// State returns the last requested state.
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
