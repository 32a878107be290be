package api

import (
	"context"
	"net/http"

	"github.com/radio-control/lorabridge/internal/telemetry"
)

// TelemetryPort is the part of the telemetry hub the API needs.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// StatePort returns the node snapshot served by GET /state.
type StatePort interface {
	Snapshot() interface{}
}

// StateFunc adapts a function to StatePort.
type StateFunc func() interface{}

// Snapshot calls f.
func (f StateFunc) Snapshot() interface{} {
	return f()
}

var _ TelemetryPort = (*telemetry.Hub)(nil)
