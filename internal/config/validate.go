package config

import (
	"fmt"
	"net"
)

func (c *Config) Validate() error {
	if _, err := c.URL(); err != nil {
		return fmt.Errorf("invalid server.base_url: %w", err)
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid server.connect_timeout: %v", c.Server.ConnectTimeout)
	}

	switch c.Recording.Backend {
	case "pipewire", "malgo":
	default:
		return fmt.Errorf("invalid recording.backend: %q (must be pipewire or malgo)", c.Recording.Backend)
	}
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.BlockSize <= 0 {
		return fmt.Errorf("invalid recording.block_size: %d", c.Recording.BlockSize)
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("invalid reconnect.max_attempts: %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("invalid reconnect.delay: %v", c.Reconnect.Delay)
	}
	switch c.Reconnect.Strategy {
	case StrategyFixed, "":
	case StrategyExponential:
		if c.Reconnect.MaxDelay < c.Reconnect.Delay {
			return fmt.Errorf("invalid reconnect.max_delay: %v (must be at least reconnect.delay %v)",
				c.Reconnect.MaxDelay, c.Reconnect.Delay)
		}
	default:
		return fmt.Errorf("invalid reconnect.strategy: %q (must be fixed or exponential)", c.Reconnect.Strategy)
	}

	if c.Telemetry.Window <= 0 {
		return fmt.Errorf("invalid telemetry.window: %v", c.Telemetry.Window)
	}

	if c.Metrics.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("invalid metrics.listen_addr: %w", err)
		}
	}

	if c.Notifications.Enabled {
		switch c.Notifications.Type {
		case "desktop", "log", "none":
		default:
			return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
		}
	}

	return nil
}
