// Package rylr drives a UART LoRa modem speaking the RYLR AT command set.
//
// Set-up commands are acknowledged with +OK and are waited on. Transmissions
// use AT+SEND and are not waited on; their +OK/+ERR replies are consumed by
// PollReceive along with +RCV lines. The serial port is opened with a short
// read timeout so PollReceive never blocks the node's loop.
package rylr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"go.bug.st/serial"

	"github.com/radio-control/lorabridge/internal/adapter"
)

const (
	// MaxPayload is the largest AT+SEND payload the modem accepts.
	MaxPayload = 240

	vendorID    = "rylr"
	readTimeout = time.Millisecond
	readChunk   = 256
)

// errorNames maps +ERR=<n> codes to the tokens used in the vendor error table.
var errorNames = map[int]string{
	1:  "MISSING_TERMINATOR",
	2:  "MISSING_AT_PREFIX",
	4:  "UNKNOWN_COMMAND",
	5:  "LENGTH_MISMATCH",
	10: "TX_OVERTIME",
	12: "CRC_ERROR",
	13: "PAYLOAD_TOO_LONG",
	14: "FLASH_WRITE_FAILED",
	15: "UNKNOWN_FAILURE",
	17: "TX_NOT_COMPLETE",
	18: "PREAMBLE_NOT_ALLOWED",
	19: "RX_HEADER_ERROR",
}

// Config holds modem settings.
type Config struct {
	Port         string
	BaudRate     int
	FrequencyHz  int64
	Address      int
	NetworkID    int
	Destination  int
	SetupTimeout time.Duration
}

// Modem implements adapter.Transport over an RYLR serial modem.
type Modem struct {
	adapter.AdapterBase

	port    io.ReadWriter
	closer  io.Closer
	cfg     Config
	buf     []byte
	pending []adapter.Frame
	lastErr error
}

var _ adapter.Transport = (*Modem)(nil)

// Open opens the serial port named in cfg and configures the modem.
func Open(cfg Config) (*Modem, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, &adapter.InitError{Stage: "open " + cfg.Port, Err: err}
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, &adapter.InitError{Stage: "read timeout", Err: err}
	}

	m, err := New(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	m.closer = port
	return m, nil
}

// New configures a modem reachable through rw. Reads from rw must return
// promptly when no data is available.
func New(rw io.ReadWriter, cfg Config) (*Modem, error) {
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = 2 * time.Second
	}
	m := &Modem{
		AdapterBase: adapter.AdapterBase{
			Model:       "RYLR",
			FrequencyHz: cfg.FrequencyHz,
			Status:      "initializing",
		},
		port: rw,
		cfg:  cfg,
	}

	steps := []string{
		"AT",
		fmt.Sprintf("AT+BAND=%d", cfg.FrequencyHz),
		fmt.Sprintf("AT+ADDRESS=%d", cfg.Address),
		fmt.Sprintf("AT+NETWORKID=%d", cfg.NetworkID),
	}
	for _, cmd := range steps {
		if err := m.command(cmd); err != nil {
			m.SetStatus("offline")
			return nil, &adapter.InitError{Stage: cmd, Err: err}
		}
	}

	m.SetStatus("online")
	return m, nil
}

// Send transmits payload to the configured destination address.
func (m *Modem) Send(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if len(payload) > MaxPayload {
		return adapter.NormalizeVendorErrorWithVendor(
			fmt.Errorf("PAYLOAD_TOO_LONG: %d bytes", len(payload)), nil, vendorID)
	}

	var line bytes.Buffer
	fmt.Fprintf(&line, "AT+SEND=%d,%d,", m.cfg.Destination, len(payload))
	line.Write(payload)
	line.WriteString("\r\n")

	if _, err := m.port.Write(line.Bytes()); err != nil {
		return adapter.NormalizeVendorErrorWithVendor(err, nil, vendorID)
	}
	return nil
}

// PollReceive reads whatever the modem has buffered and returns the next
// complete +RCV frame, if any.
func (m *Modem) PollReceive() (adapter.Frame, bool) {
	m.fill()
	m.parse()
	if len(m.pending) == 0 {
		return adapter.Frame{}, false
	}
	frame := m.pending[0]
	m.pending = m.pending[1:]
	return frame, true
}

// LastError returns the most recent +ERR reported outside set-up.
func (m *Modem) LastError() error {
	return m.lastErr
}

// Close releases the serial port.
func (m *Modem) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

// command writes an AT command and waits for +OK or +ERR.
func (m *Modem) command(cmd string) error {
	if _, err := io.WriteString(m.port, cmd+"\r\n"); err != nil {
		return adapter.NormalizeVendorErrorWithVendor(err, nil, vendorID)
	}

	deadline := time.Now().Add(m.cfg.SetupTimeout)
	for time.Now().Before(deadline) {
		m.fill()
		for {
			line, ok := m.nextLine()
			if !ok {
				break
			}
			switch {
			case bytes.Equal(line, []byte("+OK")):
				return nil
			case bytes.HasPrefix(line, []byte("+ERR=")):
				return modemError(line)
			}
		}
		time.Sleep(readTimeout)
	}
	return adapter.NormalizeVendorErrorWithVendor(
		fmt.Errorf("NO_RESPONSE to %s", cmd), nil, vendorID)
}

func (m *Modem) fill() {
	chunk := make([]byte, readChunk)
	for {
		n, err := m.port.Read(chunk)
		if n > 0 {
			m.buf = append(m.buf, chunk[:n]...)
		}
		if err != nil || n < len(chunk) {
			if err != nil && !errors.Is(err, io.EOF) {
				m.lastErr = adapter.NormalizeVendorErrorWithVendor(err, nil, vendorID)
			}
			return
		}
	}
}

func (m *Modem) parse() {
	for len(m.buf) > 0 {
		if bytes.HasPrefix(m.buf, []byte("+RCV=")) {
			frame, consumed, complete, err := parseReceive(m.buf)
			if !complete {
				return
			}
			m.buf = m.buf[consumed:]
			if err != nil {
				log.Printf("rylr: discarding malformed +RCV: %v", err)
				continue
			}
			m.pending = append(m.pending, frame)
			continue
		}

		line, ok := m.nextLine()
		if !ok {
			return
		}
		if bytes.HasPrefix(line, []byte("+ERR=")) {
			m.lastErr = modemError(line)
			log.Printf("rylr: %v", m.lastErr)
		}
	}
}

// nextLine pops one CRLF-terminated line from the buffer.
func (m *Modem) nextLine() ([]byte, bool) {
	idx := bytes.IndexByte(m.buf, '\n')
	if idx < 0 {
		return nil, false
	}
	line := bytes.TrimRight(m.buf[:idx], "\r")
	m.buf = m.buf[idx+1:]
	return line, true
}

// parseReceive parses "+RCV=<addr>,<len>,<data>,<rssi>,<snr>\r\n". The data
// field is taken by length so it may contain commas or line breaks.
func parseReceive(buf []byte) (adapter.Frame, int, bool, error) {
	rest := buf[len("+RCV="):]

	addrEnd := bytes.IndexByte(rest, ',')
	if addrEnd < 0 {
		return adapter.Frame{}, 0, false, nil
	}
	rest = rest[addrEnd+1:]

	lenEnd := bytes.IndexByte(rest, ',')
	if lenEnd < 0 {
		return adapter.Frame{}, 0, false, nil
	}
	size, err := strconv.Atoi(string(rest[:lenEnd]))
	if err != nil || size < 0 || size > MaxPayload {
		return adapter.Frame{}, skipLine(buf), skipLine(buf) > 0, fmt.Errorf("bad length %q", rest[:lenEnd])
	}
	rest = rest[lenEnd+1:]

	if len(rest) < size+1 {
		return adapter.Frame{}, 0, false, nil
	}
	payload := rest[:size]
	rest = rest[size:]

	end := bytes.IndexByte(rest, '\n')
	if end < 0 {
		return adapter.Frame{}, 0, false, nil
	}
	consumed := len(buf) - len(rest) + end + 1

	meta := bytes.Split(bytes.TrimRight(bytes.TrimPrefix(rest[:end], []byte(",")), "\r"), []byte(","))
	if len(meta) != 2 {
		return adapter.Frame{}, consumed, true, fmt.Errorf("bad signal fields %q", rest[:end])
	}
	rssi, err := strconv.Atoi(string(meta[0]))
	if err != nil {
		return adapter.Frame{}, consumed, true, fmt.Errorf("bad rssi: %w", err)
	}
	snr, err := strconv.Atoi(string(meta[1]))
	if err != nil {
		return adapter.Frame{}, consumed, true, fmt.Errorf("bad snr: %w", err)
	}

	return adapter.Frame{
		Payload:    append([]byte(nil), payload...),
		RSSI:       rssi,
		SNR:        snr,
		ReceivedAt: time.Now(),
	}, consumed, true, nil
}

func skipLine(buf []byte) int {
	return bytes.IndexByte(buf, '\n') + 1
}

func modemError(line []byte) error {
	code, err := strconv.Atoi(string(bytes.TrimPrefix(line, []byte("+ERR="))))
	if err != nil {
		return adapter.NormalizeVendorErrorWithVendor(fmt.Errorf("UNPARSEABLE %q", line), nil, vendorID)
	}
	name, ok := errorNames[code]
	if !ok {
		name = "UNKNOWN_FAILURE"
	}
	return adapter.NormalizeVendorErrorWithVendor(fmt.Errorf("%s (+ERR=%d)", name, code), code, vendorID)
}
