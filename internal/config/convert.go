package config

import (
	"github.com/leonardotrapani/voicelink/internal/notify"
	"github.com/leonardotrapani/voicelink/internal/recording"
	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

// URL is the full backend URL including the ticket.
func (c *Config) URL() (string, error) {
	return session.URL(c.Server.BaseURL, c.Server.Path, c.Server.Ticket)
}

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		Backend:          c.Recording.Backend,
		SampleRate:       c.Recording.SampleRate,
		Channels:         1,
		BlockSize:        c.Recording.BlockSize,
		Device:           c.Recording.Device,
		EchoCancellation: c.Recording.EchoCancellation,
		NoiseSuppression: c.Recording.NoiseSuppression,
		AutoGainControl:  c.Recording.AutoGainControl,
	}
}

func (c *Config) ToReconnectPolicy() transport.ReconnectPolicy {
	policy := transport.ReconnectPolicy{MaxAttempts: c.Reconnect.MaxAttempts}
	switch c.Reconnect.Strategy {
	case StrategyExponential:
		policy.Delay = transport.ExponentialDelay(c.Reconnect.Delay, c.Reconnect.MaxDelay)
	default:
		policy.Delay = transport.FixedDelay(c.Reconnect.Delay)
	}
	return policy
}

func (c *Config) ToSessionConfig() (session.Config, error) {
	url, err := c.URL()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		URL:             url,
		Policy:          c.ToReconnectPolicy(),
		ConnectTimeout:  c.Server.ConnectTimeout,
		Recording:       c.ToRecordingConfig(),
		TelemetryWindow: c.Telemetry.Window,
	}, nil
}

// Notifier returns the configured notifier; disabled notifications yield Nop.
func (c *Config) Notifier() notify.Notifier {
	if !c.Notifications.Enabled {
		return notify.Nop{}
	}
	return notify.New(c.Notifications.Type)
}
