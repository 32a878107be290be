package config

import "fmt"

// Validate checks a merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateRadio(&cfg.Radio); err != nil {
		return fmt.Errorf("radio validation failed: %w", err)
	}

	if cfg.Controller.PollInterval <= 0 {
		return fmt.Errorf("controller poll interval must be positive, got %v", cfg.Controller.PollInterval)
	}

	switch cfg.FatalPolicy {
	case FatalExit, FatalHalt:
	default:
		return fmt.Errorf("unknown fatal policy %q", cfg.FatalPolicy)
	}

	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}

	if cfg.API.Listen != "" {
		switch cfg.API.JWTAlgorithm {
		case "HS256", "RS256":
		default:
			return fmt.Errorf("unsupported JWT algorithm %q", cfg.API.JWTAlgorithm)
		}
	}

	return nil
}

func validateRadio(r *RadioConfig) error {
	switch r.Transport {
	case TransportRYLR:
		if r.Port == "" {
			return fmt.Errorf("serial port is required for %s transport", r.Transport)
		}
		if r.BaudRate <= 0 {
			return fmt.Errorf("baud rate must be positive, got %d", r.BaudRate)
		}
		if r.SetupTimeout <= 0 {
			return fmt.Errorf("setup timeout must be positive, got %v", r.SetupTimeout)
		}
	case TransportNATS:
		if r.NATSURL == "" {
			return fmt.Errorf("nats url is required for %s transport", r.Transport)
		}
	case TransportFake:
	default:
		return fmt.Errorf("unknown transport %q", r.Transport)
	}

	// LoRa ISM bands the modules support: 433, 868 and 915 MHz families.
	if r.FrequencyHz < 137_000_000 || r.FrequencyHz > 1_020_000_000 {
		return fmt.Errorf("frequency %d Hz out of range", r.FrequencyHz)
	}
	if r.Address < 0 || r.Address > 65535 {
		return fmt.Errorf("address %d out of range", r.Address)
	}
	if r.Destination < 0 || r.Destination > 65535 {
		return fmt.Errorf("destination %d out of range", r.Destination)
	}
	if r.NetworkID < 0 || r.NetworkID > 16 {
		return fmt.Errorf("network id %d out of range", r.NetworkID)
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	if t.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", t.BufferSize)
	}
	if t.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", t.HeartbeatInterval)
	}
	if t.HeartbeatJitter < 0 || t.HeartbeatJitter > t.HeartbeatInterval/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", t.HeartbeatJitter, t.HeartbeatInterval)
	}
	return nil
}
