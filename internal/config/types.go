package config

import "time"

type Config struct {
	Server        ServerConfig        `toml:"server"`
	Recording     RecordingConfig     `toml:"recording"`
	Reconnect     ReconnectConfig     `toml:"reconnect"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
	Metrics       MetricsConfig       `toml:"metrics"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// ServerConfig locates the conversation backend.
type ServerConfig struct {
	BaseURL        string        `toml:"base_url"`
	Path           string        `toml:"path"`
	Ticket         string        `toml:"ticket"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

type RecordingConfig struct {
	Backend          string `toml:"backend"` // "pipewire", "malgo"
	SampleRate       int    `toml:"sample_rate"`
	BlockSize        int    `toml:"block_size"`
	Device           string `toml:"device"`
	EchoCancellation bool   `toml:"echo_cancellation"`
	NoiseSuppression bool   `toml:"noise_suppression"`
	AutoGainControl  bool   `toml:"auto_gain_control"`
}

type ReconnectConfig struct {
	MaxAttempts int           `toml:"max_attempts"`
	Strategy    string        `toml:"strategy"` // "fixed", "exponential"
	Delay       time.Duration `toml:"delay"`
	MaxDelay    time.Duration `toml:"max_delay"`
}

type TelemetryConfig struct {
	Window time.Duration `toml:"window"`
}

type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"` // empty disables the /metrics endpoint
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}
