package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/audit"
	"github.com/radio-control/lorabridge/internal/auth"
	"github.com/radio-control/lorabridge/internal/codec"
	"github.com/radio-control/lorabridge/internal/command"
	"github.com/radio-control/lorabridge/internal/telemetry"
)

// Chat replies.
const (
	StartedReply        = "Copy that! Charging started."
	StoppedReply        = "Copy that! Charging stopped."
	StartupAnnouncement = "EV Charging Bot started up"
)

// DefaultInterval is the minimum time between two fetch cycles.
const DefaultInterval = time.Second

// HelpText is the usage reply for displayName.
func HelpText(displayName string) string {
	return "Hi, " + displayName + "." +
		"I am your EvCharging Bot\n" +
		"Use the following commands to interact with me: \n" +
		"/" + command.StartWord + "   : To start charging\n" +
		"/" + command.StopWord + " : To stops charging\n"
}

// Commands is the command menu registered with the messaging service.
var Commands = []CommandInfo{
	{Command: command.HelpWord, Description: "Show help"},
	{Command: command.StartWord, Description: "Start charging"},
	{Command: command.StopWord, Description: "Stop charging"},
}

// Options configures a Dispatcher.
type Options struct {
	// Interval between fetch cycles. Zero means DefaultInterval.
	Interval time.Duration

	// BotName is accepted as an "@" qualifier on commands.
	BotName string

	// AnnounceTo receives StartupAnnouncement from Start. Empty disables it.
	AnnounceTo string

	// RegisterCommands publishes Commands from Start when the messenger
	// supports it.
	RegisterCommands bool

	// Yield is the pause between ticks in Run. Zero means 10ms.
	Yield time.Duration

	// Now is the clock. time.Now carries a monotonic reading.
	Now func() time.Time
}

// Snapshot is the dispatcher state exposed to the status API.
type Snapshot struct {
	Node          string         `json:"node"`
	Mirror        actuator.State `json:"mirror"`
	Cursor        int64          `json:"cursor"`
	Counter       uint32         `json:"counter"`
	LastPoll      time.Time      `json:"lastPoll"`
	Handled       int            `json:"handled"`
	Rejected      int            `json:"rejected"`
	Transmissions int            `json:"transmissions"`
	TxFaults      int            `json:"txFaults"`
	LinkError     string         `json:"linkError,omitempty"`
}

// Dispatcher is the controller context: everything the polling loop reads
// or mutates lives here.
type Dispatcher struct {
	messenger Messenger
	auth      Authorizer
	radio     adapter.Transport
	mirror    actuator.Output

	auditLogger AuditLogger
	publisher   Publisher

	opts Options

	// mu guards the fields below for Snapshot readers. The loop itself is
	// single-threaded.
	mu       sync.RWMutex
	cursor   int64
	counter  uint32
	state    actuator.State
	lastPoll time.Time
	handled  int
	rejected int
	txOK     int
	txFaults int
}

// NewDispatcher creates a dispatcher. mirror may be nil.
func NewDispatcher(messenger Messenger, authorizer Authorizer, radio adapter.Transport, mirror actuator.Output, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Yield <= 0 {
		opts.Yield = 10 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if mirror == nil {
		mirror = actuator.NewMirror(nil)
	}
	return &Dispatcher{
		messenger: messenger,
		auth:      authorizer,
		radio:     radio,
		mirror:    mirror,
		opts:      opts,
	}
}

// SetAuditLogger sets the audit logger.
func (d *Dispatcher) SetAuditLogger(logger AuditLogger) {
	d.auditLogger = logger
}

// SetPublisher sets the telemetry publisher.
func (d *Dispatcher) SetPublisher(p Publisher) {
	d.publisher = p
}

// Start registers the command menu and announces the bot. Failures are
// logged only.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.opts.RegisterCommands {
		if r, ok := d.messenger.(CommandRegistrar); ok {
			if err := r.RegisterCommands(ctx, Commands); err != nil {
				log.Printf("Dispatcher: command registration failed: %v", err)
			}
		}
	}
	if d.opts.AnnounceTo != "" {
		d.reply(ctx, d.opts.AnnounceTo, StartupAnnouncement)
	}
}

// Run calls Tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		d.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.opts.Yield):
		}
	}
}

// Tick runs one polling cycle if the interval has elapsed since the last
// one. A cycle fetches and handles messages until none remain.
func (d *Dispatcher) Tick(ctx context.Context) {
	d.mu.RLock()
	last := d.lastPoll
	d.mu.RUnlock()

	if !last.IsZero() && d.opts.Now().Sub(last) < d.opts.Interval {
		return
	}

	for ctx.Err() == nil {
		msgs, err := d.messenger.GetUpdates(ctx, d.Cursor())
		if err != nil {
			log.Printf("Dispatcher: fetch failed: %v", err)
			break
		}
		if !d.handleBatch(ctx, msgs) {
			break
		}
	}

	d.mu.Lock()
	d.lastPoll = d.opts.Now()
	d.mu.Unlock()
}

// handleBatch handles msgs in order and reports whether the cursor moved.
// Messages at or below the cursor were already handled and are skipped.
func (d *Dispatcher) handleBatch(ctx context.Context, msgs []InboundMessage) bool {
	advanced := false
	for _, m := range msgs {
		d.mu.Lock()
		if m.Seq <= d.cursor {
			d.mu.Unlock()
			continue
		}
		d.cursor = m.Seq
		d.handled++
		d.mu.Unlock()

		advanced = true
		d.handle(ctx, m)
	}
	return advanced
}

func (d *Dispatcher) handle(ctx context.Context, m InboundMessage) {
	start := time.Now()
	ctx = audit.WithCorrelationID(ctx, uuid.NewString())

	if !d.auth.Authorize(m.Sender) {
		d.mu.Lock()
		d.rejected++
		d.mu.Unlock()

		d.reply(ctx, m.Sender, auth.RejectionReply)
		d.logAudit(ctx, audit.Record{
			Actor:   m.Sender,
			Action:  "authorize",
			Params:  map[string]interface{}{"text": m.Text},
			Outcome: audit.OutcomeRejected,
			Latency: time.Since(start),
		})
		d.publish(telemetry.EventRejected, map[string]interface{}{"sender": m.Sender})
		return
	}

	cmd := command.Parse(m.Text, d.opts.BotName)
	switch cmd {
	case command.Help:
		d.reply(ctx, m.Sender, HelpText(m.DisplayName))
		d.logAudit(ctx, audit.Record{Actor: m.Sender, Action: cmd.String(), Latency: time.Since(start)})
		d.publish(telemetry.EventHelp, map[string]interface{}{"sender": m.Sender})
	case command.StartActuation:
		d.actuate(ctx, m, cmd, actuator.Engaged, StartedReply, start)
	case command.StopActuation:
		d.actuate(ctx, m, cmd, actuator.Disengaged, StoppedReply, start)
	default:
		d.logAudit(ctx, audit.Record{
			Actor:   m.Sender,
			Action:  "unrecognized",
			Params:  map[string]interface{}{"text": m.Text},
			Outcome: audit.OutcomeIgnored,
			Latency: time.Since(start),
		})
	}
}

// actuate sets the local mirror, confirms to the sender and transmits.
// The counter advances on every transmit attempt.
func (d *Dispatcher) actuate(ctx context.Context, m InboundMessage, cmd command.Command, state actuator.State, reply string, start time.Time) {
	if err := d.mirror.Set(state); err != nil {
		log.Printf("Dispatcher: mirror update failed: %v", err)
	}

	d.reply(ctx, m.Sender, reply)

	d.mu.Lock()
	d.state = state
	counter := d.counter
	d.counter++
	d.mu.Unlock()

	frame, err := codec.Encode(cmd, counter)
	if err == nil {
		err = d.radio.Send(ctx, frame)
	}

	params := map[string]interface{}{
		"frame":   string(frame),
		"counter": counter,
		"state":   state.String(),
	}

	if err != nil {
		err = adapter.NormalizeVendorError(err, nil)
		log.Printf("Dispatcher: LoRa send of '%s' failed: %v", frame, err)

		d.mu.Lock()
		d.txFaults++
		d.mu.Unlock()

		d.logAudit(ctx, audit.Record{Actor: m.Sender, Action: cmd.String(), Params: params, Err: err, Latency: time.Since(start)})
		d.publish(telemetry.EventTransmitFault, map[string]interface{}{
			"frame": string(frame),
			"code":  err.Error(),
		})
		return
	}

	log.Printf("Dispatcher: sent '%s'", frame)

	d.mu.Lock()
	d.txOK++
	d.mu.Unlock()

	d.logAudit(ctx, audit.Record{Actor: m.Sender, Action: cmd.String(), Params: params, Latency: time.Since(start)})
	d.publish(telemetry.EventActuation, map[string]interface{}{
		"sender":  m.Sender,
		"state":   state.String(),
		"frame":   string(frame),
		"counter": counter,
	})
}

// reply sends text and logs a failure. Replies are never retried.
func (d *Dispatcher) reply(ctx context.Context, identity, text string) {
	if err := d.messenger.SendMessage(ctx, identity, text); err != nil {
		log.Printf("Dispatcher: reply to %s failed: %v", identity, err)
	}
}

func (d *Dispatcher) logAudit(ctx context.Context, r audit.Record) {
	if d.auditLogger != nil {
		d.auditLogger.Log(ctx, r)
	}
}

func (d *Dispatcher) publish(eventType string, data map[string]interface{}) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(telemetry.Event{Type: eventType, Data: data}); err != nil {
		log.Printf("Dispatcher: telemetry publish failed: %v", err)
	}
}

// Cursor returns the last handled sequence number.
func (d *Dispatcher) Cursor() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

// Counter returns the value the next frame will carry.
func (d *Dispatcher) Counter() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counter
}

// Snapshot returns a copy of the dispatcher state.
func (d *Dispatcher) Snapshot() Snapshot {
	var linkErr string
	if err := adapter.LastError(d.radio); err != nil {
		linkErr = err.Error()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Node:          "controller",
		Mirror:        d.state,
		Cursor:        d.cursor,
		Counter:       d.counter,
		LastPoll:      d.lastPoll,
		Handled:       d.handled,
		Rejected:      d.rejected,
		Transmissions: d.txOK,
		TxFaults:      d.txFaults,
		LinkError:     linkErr,
	}
}
