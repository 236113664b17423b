package config

import "time"

const (
	StrategyFixed       = "fixed"
	StrategyExponential = "exponential"
)

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "ws://localhost:8080",
			Path:           "ws/chat",
			Ticket:         "",
			ConnectTimeout: 15 * time.Second,
		},
		Recording: RecordingConfig{
			Backend:          "pipewire",
			SampleRate:       16000,
			BlockSize:        2048,
			Device:           "",
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			Strategy:    StrategyFixed,
			Delay:       3 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Window: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			ListenAddr: "",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
	}
}
