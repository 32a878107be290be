// Package natslink simulates the radio medium over NATS core pub/sub so both
// nodes can run on ordinary hosts. Every node publishes on a subject derived
// from the carrier frequency and receives everything else sent there.
package natslink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/radio-control/lorabridge/internal/adapter"
)

const (
	vendorID = "nats"

	headerSender = "Lora-Sender"
	headerRSSI   = "Lora-Rssi"
	headerSNR    = "Lora-Snr"

	inboxSize = 64
)

// Config holds link settings.
type Config struct {
	URL         string
	NodeName    string
	FrequencyHz int64
	// RSSI and SNR are stamped on outgoing frames in place of real
	// signal measurements.
	RSSI int
	SNR  int
}

// Subject returns the subject shared by all nodes on frequencyHz.
func Subject(frequencyHz int64) string {
	return fmt.Sprintf("lora.%d", frequencyHz)
}

// Link implements adapter.Transport over NATS.
type Link struct {
	adapter.AdapterBase

	nc      *nats.Conn
	sub     *nats.Subscription
	inbox   chan *nats.Msg
	subject string
	cfg     Config
}

var _ adapter.Transport = (*Link)(nil)

// Dial connects to NATS and subscribes to the frequency subject.
func Dial(cfg Config) (*Link, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.NodeName),
		nats.PingInterval(5*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, &adapter.InitError{Stage: "connect " + cfg.URL, Err: err}
	}

	l, err := newLink(nc, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return l, nil
}

func newLink(nc *nats.Conn, cfg Config) (*Link, error) {
	l := &Link{
		AdapterBase: adapter.AdapterBase{
			Model:       "nats-sim",
			FrequencyHz: cfg.FrequencyHz,
			Status:      "online",
		},
		nc:      nc,
		inbox:   make(chan *nats.Msg, inboxSize),
		subject: Subject(cfg.FrequencyHz),
		cfg:     cfg,
	}

	sub, err := nc.ChanSubscribe(l.subject, l.inbox)
	if err != nil {
		return nil, &adapter.InitError{Stage: "subscribe " + l.subject, Err: err}
	}
	l.sub = sub
	return l, nil
}

// Send publishes payload on the frequency subject.
func (l *Link) Send(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := l.nc.PublishMsg(l.message(payload)); err != nil {
		return adapter.NormalizeVendorErrorWithVendor(err, nil, vendorID)
	}
	return nil
}

// PollReceive returns the next frame sent by another node.
func (l *Link) PollReceive() (adapter.Frame, bool) {
	for {
		select {
		case msg := <-l.inbox:
			if msg.Header.Get(headerSender) == l.cfg.NodeName {
				continue
			}
			return frameFromMessage(msg), true
		default:
			return adapter.Frame{}, false
		}
	}
}

// Close unsubscribes and closes the connection.
func (l *Link) Close() error {
	if l.sub != nil {
		_ = l.sub.Unsubscribe()
	}
	l.nc.Close()
	return nil
}

func (l *Link) message(payload []byte) *nats.Msg {
	msg := nats.NewMsg(l.subject)
	msg.Data = payload
	msg.Header.Set(headerSender, l.cfg.NodeName)
	msg.Header.Set(headerRSSI, strconv.Itoa(l.cfg.RSSI))
	msg.Header.Set(headerSNR, strconv.Itoa(l.cfg.SNR))
	return msg
}

func frameFromMessage(msg *nats.Msg) adapter.Frame {
	rssi, _ := strconv.Atoi(msg.Header.Get(headerRSSI))
	snr, _ := strconv.Atoi(msg.Header.Get(headerSNR))
	return adapter.Frame{
		Payload:    append([]byte(nil), msg.Data...),
		RSSI:       rssi,
		SNR:        snr,
		ReceivedAt: time.Now(),
	}
}
