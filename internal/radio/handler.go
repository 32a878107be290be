package radio

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/audit"
	"github.com/radio-control/lorabridge/internal/codec"
	"github.com/radio-control/lorabridge/internal/telemetry"
)

// AuditLogger records received frames.
type AuditLogger interface {
	Log(ctx context.Context, r audit.Record)
}

// Publisher receives telemetry events.
type Publisher interface {
	Publish(event telemetry.Event) error
}

// Link describes the transport, when it can describe itself.
type Link struct {
	Model       string `json:"model"`
	FrequencyHz int64  `json:"frequencyHz"`
	Status      string `json:"status"`
}

// Snapshot is the receiver state exposed to the status API.
type Snapshot struct {
	Node      string         `json:"node"`
	State     actuator.State `json:"state"`
	LastFrame string         `json:"lastFrame"`
	LastRSSI  int            `json:"lastRssi"`
	LastSNR   int            `json:"lastSnr"`
	LastSeen  time.Time      `json:"lastSeen"`
	Frames    int            `json:"frames"`
	Faults    int            `json:"faults"`
	Link      *Link          `json:"link,omitempty"`
	LinkError string         `json:"linkError,omitempty"`
}

// Handler is the receiver context.
type Handler struct {
	radio  adapter.Transport
	output actuator.Output

	auditLogger AuditLogger
	publisher   Publisher

	idle time.Duration

	mu   sync.RWMutex
	snap Snapshot
}

// NewHandler creates a handler that drives output from frames on radio.
func NewHandler(radio adapter.Transport, output actuator.Output) *Handler {
	return &Handler{
		radio:  radio,
		output: output,
		idle:   5 * time.Millisecond,
		snap:   Snapshot{Node: "receiver"},
	}
}

// SetAuditLogger sets the audit logger.
func (h *Handler) SetAuditLogger(logger AuditLogger) {
	h.auditLogger = logger
}

// SetPublisher sets the telemetry publisher.
func (h *Handler) SetPublisher(p Publisher) {
	h.publisher = p
}

// SetIdle sets the pause Run takes after an empty poll.
func (h *Handler) SetIdle(d time.Duration) {
	if d > 0 {
		h.idle = d
	}
}

// Poll handles at most one pending frame and reports whether one was read.
func (h *Handler) Poll(ctx context.Context) bool {
	frame, ok := h.radio.PollReceive()
	if !ok {
		return false
	}
	start := time.Now()

	log.Printf("Received packet '%s' with RSSI %d", frame.Payload, frame.RSSI)

	params := map[string]interface{}{
		"frame": string(frame.Payload),
		"rssi":  frame.RSSI,
		"snr":   frame.SNR,
	}

	state, err := codec.Decode(frame.Payload)
	if err == nil {
		err = h.output.Set(state)
	}

	h.mu.Lock()
	h.snap.LastFrame = string(frame.Payload)
	h.snap.LastRSSI = frame.RSSI
	h.snap.LastSNR = frame.SNR
	h.snap.LastSeen = frame.ReceivedAt
	h.snap.Frames++
	if err != nil {
		h.snap.Faults++
	} else {
		h.snap.State = state
	}
	h.mu.Unlock()

	if err != nil {
		log.Printf("Receiver: frame not applied: %v", err)
		h.logAudit(ctx, audit.Record{Actor: "radio", Action: "frame", Params: params, Err: err, Latency: time.Since(start)})
		h.publish(telemetry.EventFrameFault, map[string]interface{}{
			"frame": string(frame.Payload),
			"rssi":  frame.RSSI,
			"code":  err.Error(),
		})
		return true
	}

	params["state"] = state.String()
	h.logAudit(ctx, audit.Record{Actor: "radio", Action: "frame", Params: params, Latency: time.Since(start)})
	h.publish(telemetry.EventFrame, map[string]interface{}{
		"frame": string(frame.Payload),
		"rssi":  frame.RSSI,
		"snr":   frame.SNR,
		"state": state.String(),
	})
	return true
}

// Run polls until ctx is cancelled. Pending frames are handled back to
// back; the idle pause applies only when nothing was read.
func (h *Handler) Run(ctx context.Context) error {
	for {
		if h.Poll(ctx) {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.idle):
		}
	}
}

// Snapshot returns a copy of the receiver state.
func (h *Handler) Snapshot() Snapshot {
	h.mu.RLock()
	snap := h.snap
	h.mu.RUnlock()

	if d, ok := adapter.Describe(h.radio); ok {
		snap.Link = &Link{
			Model:       d.GetModel(),
			FrequencyHz: d.GetFrequencyHz(),
			Status:      d.GetStatus(),
		}
	}
	if err := adapter.LastError(h.radio); err != nil {
		snap.LinkError = err.Error()
	}
	return snap
}

func (h *Handler) logAudit(ctx context.Context, r audit.Record) {
	if h.auditLogger != nil {
		h.auditLogger.Log(ctx, r)
	}
}

func (h *Handler) publish(eventType string, data map[string]interface{}) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(telemetry.Event{Type: eventType, Data: data}); err != nil {
		log.Printf("Receiver: telemetry publish failed: %v", err)
	}
}
