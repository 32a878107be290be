package node

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/adapter/fake"
	"github.com/radio-control/lorabridge/internal/adapter/natslink"
	"github.com/radio-control/lorabridge/internal/adapter/rylr"
	"github.com/radio-control/lorabridge/internal/api"
	"github.com/radio-control/lorabridge/internal/audit"
	"github.com/radio-control/lorabridge/internal/auth"
	"github.com/radio-control/lorabridge/internal/config"
	"github.com/radio-control/lorabridge/internal/telemetry"
)

// Node names used in logs, audit entries and the status API.
const (
	Controller = "controller"
	Receiver   = "receiver"
)

// StartupFailure is logged when the radio cannot be brought up.
const StartupFailure = "Starting LoRa failed!"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging sends the standard logger to a rotating file when cfg.File
// is set, and to stderr otherwise.
func SetupLogging(cfg config.LogConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	out := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, out))
	return out
}

// OpenTransport brings up the configured radio. Set-up failures are
// returned as *adapter.InitError. The closer releases the port or
// connection.
func OpenTransport(cfg config.RadioConfig, name string) (adapter.Transport, io.Closer, error) {
	var (
		t      adapter.Transport
		closer io.Closer = nopCloser{}
	)

	switch cfg.Transport {
	case config.TransportRYLR:
		m, err := rylr.Open(rylr.Config{
			Port:         cfg.Port,
			BaudRate:     cfg.BaudRate,
			FrequencyHz:  cfg.FrequencyHz,
			Address:      cfg.Address,
			NetworkID:    cfg.NetworkID,
			Destination:  cfg.Destination,
			SetupTimeout: cfg.SetupTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		t, closer = m, m
	case config.TransportNATS:
		l, err := natslink.Dial(natslink.Config{
			URL:         cfg.NATSURL,
			NodeName:    name,
			FrequencyHz: cfg.FrequencyHz,
			RSSI:        -40,
			SNR:         10,
		})
		if err != nil {
			return nil, nil, err
		}
		t, closer = l, l
	case config.TransportFake:
		log.Printf("Radio transport %q is a process-local medium with no peers; frames sent here reach no other node", cfg.Transport)
		t = fake.NewMedium().Join(name)
	default:
		return nil, nil, fmt.Errorf("unknown radio transport %q", cfg.Transport)
	}

	if cfg.IndicatorPin != "" {
		pin, err := actuator.OpenGPIO(cfg.IndicatorPin)
		if err != nil {
			_ = closer.Close()
			return nil, nil, &adapter.InitError{Stage: "indicator " + cfg.IndicatorPin, Err: err}
		}
		t = adapter.WithIndicator(t, actuator.NewActiveLow(pin))
	}
	return t, closer, nil
}

// OpenOutput returns an active-low GPIO output for pin, or an in-memory
// output when pin is empty.
func OpenOutput(pin string) (actuator.Output, error) {
	if pin == "" {
		return actuator.NewMemory(), nil
	}
	p, err := actuator.OpenGPIO(pin)
	if err != nil {
		return nil, err
	}
	return actuator.NewActiveLow(p), nil
}

// NewAuditLogger returns nil when auditing is disabled.
func NewAuditLogger(cfg config.AuditConfig, name string) (*audit.Logger, error) {
	if cfg.Dir == "" {
		return nil, nil
	}
	return audit.NewLogger(audit.Options{
		Dir:        cfg.Dir,
		Node:       name,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

// NewHub creates the telemetry hub with snapshot embedded in ready events.
func NewHub(cfg config.TelemetryConfig, snapshot func() interface{}) *telemetry.Hub {
	return telemetry.NewHub(telemetry.Options{
		BufferSize:        cfg.BufferSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatJitter:   cfg.HeartbeatJitter,
		Snapshot:          snapshot,
	})
}

// NewVerifier builds the bearer token verifier. It returns nil when no key
// material is configured, leaving the API open.
func NewVerifier(cfg config.APIConfig) (*auth.Verifier, error) {
	vc := auth.VerifierConfig{Algorithm: cfg.JWTAlgorithm, SecretKey: cfg.JWTSecret}
	switch cfg.JWTAlgorithm {
	case "RS256":
		if cfg.JWTPublicKeyFile == "" {
			return nil, nil
		}
		pem, err := os.ReadFile(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		vc.PublicKeyPEM = string(pem)
	default:
		if cfg.JWTSecret == "" {
			return nil, nil
		}
	}
	return auth.NewVerifier(vc)
}

// NewServer creates the status API server, or nil when cfg.Listen is empty.
func NewServer(cfg config.APIConfig, name string, hub *telemetry.Hub, state api.StatePort) (*api.Server, error) {
	if cfg.Listen == "" {
		return nil, nil
	}
	verifier, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	var mw *auth.Middleware
	if verifier != nil {
		mw = auth.NewMiddleware(verifier)
	} else {
		log.Printf("Status API on %s has no token verifier configured; routes are open", cfg.Listen)
	}
	return api.NewServer(api.Options{
		Node:      name,
		Telemetry: hub,
		State:     state,
		Auth:      mw,
	}), nil
}
