package config

import "time"

// Transport kinds selectable with radio.transport.
const (
	TransportRYLR = "rylr"
	TransportNATS = "nats"
	TransportFake = "fake"
)

// Fatal policies applied by the entry points when radio set-up fails.
const (
	FatalExit = "exit"
	FatalHalt = "halt"
)

// Config is the full node configuration.
type Config struct {
	CredentialsPath string `yaml:"credentials_path" env:"CREDENTIALS_PATH"`
	FatalPolicy     string `yaml:"fatal_policy" env:"FATAL_POLICY"`

	Radio      RadioConfig      `yaml:"radio" envPrefix:"RADIO_"`
	Controller ControllerConfig `yaml:"controller" envPrefix:"CONTROLLER_"`
	Receiver   ReceiverConfig   `yaml:"receiver" envPrefix:"RECEIVER_"`
	Telegram   TelegramConfig   `yaml:"telegram" envPrefix:"TELEGRAM_"`
	API        APIConfig        `yaml:"api" envPrefix:"API_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Audit      AuditConfig      `yaml:"audit" envPrefix:"AUDIT_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

// RadioConfig selects and configures the radio transport.
type RadioConfig struct {
	Transport    string        `yaml:"transport" env:"TRANSPORT"`
	FrequencyHz  int64         `yaml:"frequency_hz" env:"FREQUENCY_HZ"`
	Port         string        `yaml:"port" env:"PORT"`
	BaudRate     int           `yaml:"baud_rate" env:"BAUD_RATE"`
	Address      int           `yaml:"address" env:"ADDRESS"`
	NetworkID    int           `yaml:"network_id" env:"NETWORK_ID"`
	Destination  int           `yaml:"destination" env:"DESTINATION"`
	SetupTimeout time.Duration `yaml:"setup_timeout" env:"SETUP_TIMEOUT"`
	NATSURL      string        `yaml:"nats_url" env:"NATS_URL"`
	IndicatorPin string        `yaml:"indicator_pin" env:"INDICATOR_PIN"`
}

// ControllerConfig configures the chat polling node.
type ControllerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	MirrorPin        string        `yaml:"mirror_pin" env:"MIRROR_PIN"`
	RegisterCommands bool          `yaml:"register_commands" env:"REGISTER_COMMANDS"`
	Announce         bool          `yaml:"announce" env:"ANNOUNCE"`
}

// ReceiverConfig configures the radio listening node.
type ReceiverConfig struct {
	OutputPin string `yaml:"output_pin" env:"OUTPUT_PIN"`
}

// TelegramConfig configures the messaging adapter.
type TelegramConfig struct {
	APIServer string `yaml:"api_server" env:"API_SERVER"`
	BotName   string `yaml:"bot_name" env:"BOT_NAME"`
}

// APIConfig configures the optional status API. An empty Listen disables it.
type APIConfig struct {
	Listen           string `yaml:"listen" env:"LISTEN"`
	JWTAlgorithm     string `yaml:"jwt_algorithm" env:"JWT_ALGORITHM"`
	JWTSecret        string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTPublicKeyFile string `yaml:"jwt_public_key_file" env:"JWT_PUBLIC_KEY_FILE"`
}

// TelemetryConfig configures the SSE hub.
type TelemetryConfig struct {
	BufferSize        int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	HeartbeatJitter   time.Duration `yaml:"heartbeat_jitter" env:"HEARTBEAT_JITTER"`
}

// AuditConfig configures the audit trail. An empty Dir disables it.
type AuditConfig struct {
	Dir        string `yaml:"dir" env:"DIR"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// LogConfig routes the process log to a rotating file when File is set.
type LogConfig struct {
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		CredentialsPath: "config.json",
		FatalPolicy:     FatalExit,
		Radio: RadioConfig{
			Transport:    TransportRYLR,
			FrequencyHz:  433_000_000,
			Port:         "/dev/ttyUSB0",
			BaudRate:     115200,
			Address:      1,
			NetworkID:    6,
			Destination:  0,
			SetupTimeout: 2 * time.Second,
			NATSURL:      "nats://127.0.0.1:4222",
		},
		Controller: ControllerConfig{
			PollInterval: time.Second,
			Announce:     true,
		},
		Telemetry: TelemetryConfig{
			BufferSize:        50,
			HeartbeatInterval: 15 * time.Second,
			HeartbeatJitter:   2 * time.Second,
		},
		API: APIConfig{
			JWTAlgorithm: "HS256",
		},
		Audit: AuditConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
