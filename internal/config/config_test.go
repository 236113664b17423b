package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/voicelink/internal/notify"
)

// createTestConfig returns a valid configuration for testing
func createTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "wss://voice.example.com",
			Path:           "ws/chat",
			Ticket:         "ticket-123",
			ConnectTimeout: 10 * time.Second,
		},
		Recording: RecordingConfig{
			Backend:    "pipewire",
			SampleRate: 16000,
			BlockSize:  2048,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			Strategy:    StrategyFixed,
			Delay:       3 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Telemetry: TelemetryConfig{Window: 5 * time.Second},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "log",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{name: "defaults are valid", modify: func(c *Config) { *c = *DefaultConfig() }},
		{name: "empty base url", modify: func(c *Config) { c.Server.BaseURL = "" }, wantErr: "server.base_url"},
		{name: "unsupported scheme", modify: func(c *Config) { c.Server.BaseURL = "ftp://host" }, wantErr: "server.base_url"},
		{name: "http base url accepted", modify: func(c *Config) { c.Server.BaseURL = "https://host" }},
		{name: "zero connect timeout", modify: func(c *Config) { c.Server.ConnectTimeout = 0 }, wantErr: "server.connect_timeout"},
		{name: "unknown backend", modify: func(c *Config) { c.Recording.Backend = "alsa" }, wantErr: "recording.backend"},
		{name: "malgo backend", modify: func(c *Config) { c.Recording.Backend = "malgo" }},
		{name: "zero sample rate", modify: func(c *Config) { c.Recording.SampleRate = 0 }, wantErr: "recording.sample_rate"},
		{name: "zero block size", modify: func(c *Config) { c.Recording.BlockSize = 0 }, wantErr: "recording.block_size"},
		{name: "negative attempts", modify: func(c *Config) { c.Reconnect.MaxAttempts = -1 }, wantErr: "reconnect.max_attempts"},
		{name: "zero attempts allowed", modify: func(c *Config) { c.Reconnect.MaxAttempts = 0 }},
		{name: "zero delay", modify: func(c *Config) { c.Reconnect.Delay = 0 }, wantErr: "reconnect.delay"},
		{name: "unknown strategy", modify: func(c *Config) { c.Reconnect.Strategy = "linear" }, wantErr: "reconnect.strategy"},
		{
			name: "exponential with small max delay",
			modify: func(c *Config) {
				c.Reconnect.Strategy = StrategyExponential
				c.Reconnect.MaxDelay = time.Second
			},
			wantErr: "reconnect.max_delay",
		},
		{name: "exponential", modify: func(c *Config) { c.Reconnect.Strategy = StrategyExponential }},
		{name: "zero telemetry window", modify: func(c *Config) { c.Telemetry.Window = 0 }, wantErr: "telemetry.window"},
		{name: "bad metrics addr", modify: func(c *Config) { c.Metrics.ListenAddr = "9464" }, wantErr: "metrics.listen_addr"},
		{name: "metrics addr", modify: func(c *Config) { c.Metrics.ListenAddr = "127.0.0.1:9464" }},
		{name: "invalid notification type", modify: func(c *Config) { c.Notifications.Type = "invalid" }, wantErr: "notifications.type"},
		{
			name: "disabled notifications skip type check",
			modify: func(c *Config) {
				c.Notifications.Enabled = false
				c.Notifications.Type = "invalid"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := createTestConfig()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Load(t *testing.T) {
	t.Run("creates default config when none exists", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tempDir)
		t.Setenv(EnvTicket, "")
		t.Setenv(EnvBaseURL, "")

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("Loaded config is invalid: %v", err)
		}

		configPath := filepath.Join(tempDir, "voicelink", "config.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Errorf("Load() did not create config file")
		}

		want := DefaultConfig()
		if *config != *want {
			t.Errorf("generated config = %+v, want defaults %+v", config, want)
		}
	})

	t.Run("loads existing config over defaults", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tempDir)
		t.Setenv(EnvTicket, "")
		t.Setenv(EnvBaseURL, "")

		configPath := filepath.Join(tempDir, "voicelink", "config.toml")
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			t.Fatalf("Failed to create config directory: %v", err)
		}
		content := `[server]
base_url = "wss://voice.example.com"
ticket = "abc"
connect_timeout = "20s"

[reconnect]
strategy = "exponential"
delay = "1s"
max_delay = "10s"
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Server.BaseURL != "wss://voice.example.com" || config.Server.Ticket != "abc" {
			t.Errorf("server = %+v", config.Server)
		}
		if config.Server.ConnectTimeout != 20*time.Second {
			t.Errorf("connect_timeout = %v, want 20s", config.Server.ConnectTimeout)
		}
		// keys absent from the file keep their defaults
		if config.Server.Path != "ws/chat" {
			t.Errorf("path = %q, want default", config.Server.Path)
		}
		if config.Recording.SampleRate != 16000 || config.Reconnect.MaxAttempts != 5 {
			t.Errorf("defaults not applied: %+v %+v", config.Recording, config.Reconnect)
		}
		if config.Reconnect.Strategy != StrategyExponential || config.Reconnect.MaxDelay != 10*time.Second {
			t.Errorf("reconnect = %+v", config.Reconnect)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tempDir)
		t.Setenv(EnvTicket, "from-env")
		t.Setenv(EnvBaseURL, "ws://env-host:9000")

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Server.Ticket != "from-env" || config.Server.BaseURL != "ws://env-host:9000" {
			t.Errorf("server = %+v, want env overrides", config.Server)
		}
	})
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadFile(missing) error = %v, want ErrConfigNotFound", err)
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\nbase_url = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("LoadFile(invalid) error = %v, want parse error", err)
	}
}

func TestSaveFile_RoundTrip(t *testing.T) {
	t.Setenv(EnvTicket, "")
	t.Setenv(EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.toml")

	config := createTestConfig()
	config.Metrics.ListenAddr = "127.0.0.1:9464"
	config.Reconnect.Strategy = StrategyExponential
	if err := SaveFile(path, config); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if *loaded != *config {
		t.Errorf("loaded = %+v, want %+v", loaded, config)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestSaveDefaultConfig(t *testing.T) {
	t.Setenv(EnvTicket, "")
	t.Setenv(EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveDefaultConfig(path); err != nil {
		t.Fatalf("SaveDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, section := range []string{"[server]", "[recording]", "[reconnect]", "[telemetry]", "[metrics]", "[notifications]"} {
		if !strings.Contains(string(data), section) {
			t.Errorf("default config missing section %s", section)
		}
	}

	// the commented template must decode to exactly the defaults
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if *loaded != *DefaultConfig() {
		t.Errorf("template decodes to %+v, want %+v", loaded, DefaultConfig())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("VOICELINK_TICKET=dotenv-ticket\nVOICELINK_BASE_URL=ws://dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvTicket, "")
	os.Unsetenv(EnvTicket)
	t.Setenv(EnvBaseURL, "ws://already-set")

	if err := LoadDotEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(EnvTicket); got != "dotenv-ticket" {
		t.Errorf("%s = %q, want dotenv-ticket", EnvTicket, got)
	}
	if got := os.Getenv(EnvBaseURL); got != "ws://already-set" {
		t.Errorf("%s = %q, existing variables must not be overridden", EnvBaseURL, got)
	}
}

func TestGetConfigPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tempDir)

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	expectedPath := filepath.Join(tempDir, "voicelink", "config.toml")
	if path != expectedPath {
		t.Errorf("GetConfigPath() = %s, want %s", path, expectedPath)
	}
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Errorf("GetConfigPath() did not create config directory")
	}
}

func TestConfig_ConversionMethods(t *testing.T) {
	config := createTestConfig()

	url, err := config.URL()
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	if url != "wss://voice.example.com/ws/chat?ticket=ticket-123" {
		t.Errorf("URL() = %q", url)
	}

	rec := config.ToRecordingConfig()
	if rec.Backend != "pipewire" || rec.SampleRate != 16000 || rec.Channels != 1 || rec.BlockSize != 2048 {
		t.Errorf("ToRecordingConfig() = %+v", rec)
	}

	policy := config.ToReconnectPolicy()
	if policy.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", policy.MaxAttempts)
	}
	for attempt := 1; attempt <= 3; attempt++ {
		if d := policy.Delay(attempt); d != 3*time.Second {
			t.Errorf("fixed Delay(%d) = %v, want 3s", attempt, d)
		}
	}

	config.Reconnect.Strategy = StrategyExponential
	config.Reconnect.Delay = time.Second
	config.Reconnect.MaxDelay = 4 * time.Second
	policy = config.ToReconnectPolicy()
	if d := policy.Delay(10); d > 4*time.Second || d < 3*time.Second {
		t.Errorf("exponential Delay(10) = %v, want capped near 4s", d)
	}

	sc, err := config.ToSessionConfig()
	if err != nil {
		t.Fatalf("ToSessionConfig() error = %v", err)
	}
	if sc.URL != url || sc.ConnectTimeout != 10*time.Second || sc.TelemetryWindow != 5*time.Second {
		t.Errorf("ToSessionConfig() = %+v", sc)
	}

	config.Server.BaseURL = "not a url"
	if _, err := config.ToSessionConfig(); err == nil {
		t.Error("ToSessionConfig() with bad url expected error")
	}
}

func TestConfig_Notifier(t *testing.T) {
	config := createTestConfig()
	if _, ok := config.Notifier().(notify.Log); !ok {
		t.Errorf("Notifier() = %T, want notify.Log", config.Notifier())
	}
	config.Notifications.Enabled = false
	if _, ok := config.Notifier().(notify.Nop); !ok {
		t.Errorf("Notifier() = %T, want notify.Nop when disabled", config.Notifier())
	}
}

func TestManager_ReloadsOnChange(t *testing.T) {
	t.Setenv(EnvTicket, "")
	t.Setenv(EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveFile(path, createTestConfig()); err != nil {
		t.Fatal(err)
	}

	m, err := NewManagerForFile(path)
	if err != nil {
		t.Fatalf("NewManagerForFile() error = %v", err)
	}
	reloaded := make(chan *Config, 4)
	m.OnReload(func(prev, next *Config) { reloaded <- next })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartWatching(ctx); err != nil {
		t.Fatalf("StartWatching() error = %v", err)
	}
	defer m.Stop()

	updated := createTestConfig()
	updated.Server.Ticket = "rotated"
	if err := SaveFile(path, updated); err != nil {
		t.Fatal(err)
	}

	select {
	case next := <-reloaded:
		if next.Server.Ticket != "rotated" {
			t.Errorf("reloaded ticket = %q, want rotated", next.Server.Ticket)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
	if got := m.GetConfig().Server.Ticket; got != "rotated" {
		t.Errorf("GetConfig().Server.Ticket = %q", got)
	}
}

func TestManager_KeepsConfigOnInvalidReload(t *testing.T) {
	t.Setenv(EnvTicket, "")
	t.Setenv(EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveFile(path, createTestConfig()); err != nil {
		t.Fatal(err)
	}
	m, err := NewManagerForFile(path)
	if err != nil {
		t.Fatal(err)
	}

	bad := createTestConfig()
	bad.Recording.Backend = "alsa"
	if err := SaveFile(path, bad); err != nil {
		t.Fatal(err)
	}
	m.reload()

	if got := m.GetConfig().Recording.Backend; got != "pipewire" {
		t.Errorf("backend = %q, invalid reload must be ignored", got)
	}
}
