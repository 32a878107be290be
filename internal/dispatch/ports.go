package dispatch

import (
	"context"

	"github.com/radio-control/lorabridge/internal/audit"
	"github.com/radio-control/lorabridge/internal/telemetry"
)

// InboundMessage is one message fetched from the messaging service.
type InboundMessage struct {
	Seq         int64
	Sender      string
	Text        string
	DisplayName string
}

// Messenger is the remote messaging service.
type Messenger interface {
	// GetUpdates returns messages with a sequence number greater than after,
	// in delivery order.
	GetUpdates(ctx context.Context, after int64) ([]InboundMessage, error)

	// SendMessage sends text to identity.
	SendMessage(ctx context.Context, identity, text string) error
}

// CommandInfo describes a chat command for the service's command menu.
type CommandInfo struct {
	Command     string
	Description string
}

// CommandRegistrar is implemented by messengers that can publish a
// command menu.
type CommandRegistrar interface {
	RegisterCommands(ctx context.Context, cmds []CommandInfo) error
}

// Authorizer decides whether a sender may actuate.
type Authorizer interface {
	Authorize(identity string) bool
}

// AuditLogger records dispatch decisions.
type AuditLogger interface {
	Log(ctx context.Context, r audit.Record)
}

// Publisher receives telemetry events.
type Publisher interface {
	Publish(event telemetry.Event) error
}

var (
	_ AuditLogger = (*audit.Logger)(nil)
	_ Publisher   = (*telemetry.Hub)(nil)
)
