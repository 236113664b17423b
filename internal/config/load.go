package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	EnvTicket  = "VOICELINK_TICKET"
	EnvBaseURL = "VOICELINK_BASE_URL"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	voicelinkDir := filepath.Join(configDir, "voicelink")
	if err := os.MkdirAll(voicelinkDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(voicelinkDir, "config.toml"), nil
}

// Load reads the user config, creating it with defaults on first run.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("Config: no config file found at %s, creating with defaults", configPath)
		if err := SaveDefaultConfig(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	return LoadFile(configPath)
}

// LoadFile decodes path over the defaults and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	log.Printf("Config: loading configuration from %s", path)
	config := DefaultConfig()
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Printf("Config: ignoring unknown keys: %v", undecoded)
	}

	config.applyEnv()
	log.Printf("Config: configuration loaded successfully")
	return config, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		log.Printf("Config: loaded environment from %s", p)
	}
	return nil
}

// applyEnv lets the ticket and backend be supplied without editing the file.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTicket); v != "" {
		c.Server.Ticket = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Server.BaseURL = v
	}
}

// Save writes config to the user config path.
func Save(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(configPath, config)
}

func SaveFile(path string, config *Config) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if _, err := file.WriteString("# Voicelink Configuration\n\n"); err != nil {
		file.Close()
		return fmt.Errorf("failed to write config header: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(config); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	// rename so the watcher never sees a half-written file
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

func SaveDefaultConfig(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	configContent := `# Voicelink Configuration
# This file is automatically generated with defaults.
# Edit values as needed - the daemon reloads it on change.

# Conversation backend
[server]
  base_url = "ws://localhost:8080"  # ws:// or wss:// (http/https are mapped)
  path = "ws/chat"                  # Resource path appended to base_url
  ticket = ""                       # Access ticket (or set VOICELINK_TICKET)
  connect_timeout = "15s"           # Upper bound for a single connection attempt

# Microphone capture
[recording]
  backend = "pipewire"         # "pipewire" (pw-record) or "malgo" (miniaudio)
  sample_rate = 16000          # Hz; the backend expects 16000
  block_size = 2048            # Samples per streamed frame
  device = ""                  # Capture device (empty = default microphone)
  echo_cancellation = true
  noise_suppression = true
  auto_gain_control = true

# Reconnection after an abnormal close
[reconnect]
  max_attempts = 5             # Attempts before giving up (0 = never reconnect)
  strategy = "fixed"           # "fixed" or "exponential"
  delay = "3s"                 # Fixed delay, or base delay for exponential
  max_delay = "30s"            # Cap for exponential backoff

# Throughput diagnostics
[telemetry]
  window = "5s"

# Prometheus endpoint
[metrics]
  listen_addr = ""             # e.g. "127.0.0.1:9464" (empty = disabled)

# Desktop Notification Configuration
[notifications]
  enabled = true               # Enable notifications
  type = "desktop"             # Notification type ("desktop", "log", "none")
`

	if _, err := file.WriteString(configContent); err != nil {
		return fmt.Errorf("failed to write config content: %w", err)
	}
	return nil
}
