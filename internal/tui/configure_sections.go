package tui

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/voicelink/internal/config"
	"github.com/leonardotrapani/voicelink/internal/session"
)

func formatServerLabel(cfg *config.Config) string {
	return fmt.Sprintf("Server (%s)", cfg.Server.BaseURL)
}

func formatRecordingLabel(cfg *config.Config) string {
	return fmt.Sprintf("Recording (%s, %d Hz)", cfg.Recording.Backend, cfg.Recording.SampleRate)
}

func formatReconnectLabel(cfg *config.Config) string {
	if cfg.Reconnect.MaxAttempts == 0 {
		return "Reconnect (disabled)"
	}
	if cfg.Reconnect.Strategy == config.StrategyExponential {
		return fmt.Sprintf("Reconnect (%d attempts, %s up to %s)",
			cfg.Reconnect.MaxAttempts, cfg.Reconnect.Delay, cfg.Reconnect.MaxDelay)
	}
	return fmt.Sprintf("Reconnect (%d attempts, every %s)", cfg.Reconnect.MaxAttempts, cfg.Reconnect.Delay)
}

func formatTelemetryLabel(cfg *config.Config) string {
	if cfg.Metrics.ListenAddr == "" {
		return fmt.Sprintf("Telemetry (window %s, metrics off)", cfg.Telemetry.Window)
	}
	return fmt.Sprintf("Telemetry (window %s, metrics on %s)", cfg.Telemetry.Window, cfg.Metrics.ListenAddr)
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (disabled)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}

func maskTicket(ticket string) string {
	switch {
	case ticket == "":
		return "(not set)"
	case len(ticket) <= 8:
		return "***"
	default:
		return ticket[:4] + "..." + ticket[len(ticket)-4:]
	}
}

func validateInt(least int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if n < least {
			return fmt.Errorf("must be at least %d", least)
		}
		return nil
	}
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a duration like 3s or 500ms")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateListenAddr(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("must be host:port")
	}
	return nil
}

// serverValues mirrors ServerConfig as form strings.
type serverValues struct {
	baseURL, path, ticket, timeout string
}

func newServerValues(cfg *config.Config) serverValues {
	return serverValues{
		baseURL: cfg.Server.BaseURL,
		path:    cfg.Server.Path,
		ticket:  cfg.Server.Ticket,
		timeout: cfg.Server.ConnectTimeout.String(),
	}
}

func (v serverValues) apply(cfg *config.Config) error {
	timeout, err := time.ParseDuration(strings.TrimSpace(v.timeout))
	if err != nil {
		return fmt.Errorf("connect timeout: %w", err)
	}
	cfg.Server.BaseURL = strings.TrimSpace(v.baseURL)
	cfg.Server.Path = strings.TrimSpace(v.path)
	cfg.Server.Ticket = strings.TrimSpace(v.ticket)
	cfg.Server.ConnectTimeout = timeout
	return nil
}

func editServer(cfg *config.Config) error {
	v := newServerValues(cfg)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("http(s) or ws(s) address of the conversation server").
				Placeholder("wss://voice.example.com").
				Value(&v.baseURL).
				Validate(func(s string) error {
					_, err := session.URL(strings.TrimSpace(s), "x", "x")
					return err
				}),
			huh.NewInput().
				Title("Path").
				Description("WebSocket endpoint path").
				Placeholder("ws/chat").
				Value(&v.path),
			huh.NewInput().
				Title("Ticket").
				Description("Access ticket; VOICELINK_TICKET overrides it at runtime").
				EchoMode(huh.EchoModePassword).
				Value(&v.ticket),
			huh.NewInput().
				Title("Connect Timeout").
				Placeholder("15s").
				Value(&v.timeout).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}
	return v.apply(cfg)
}

type recordingValues struct {
	backend, sampleRate, blockSize, device string
	processing                             []string
}

const (
	procEcho  = "echo_cancellation"
	procNoise = "noise_suppression"
	procGain  = "auto_gain_control"
)

func newRecordingValues(cfg *config.Config) recordingValues {
	v := recordingValues{
		backend:    cfg.Recording.Backend,
		sampleRate: strconv.Itoa(cfg.Recording.SampleRate),
		blockSize:  strconv.Itoa(cfg.Recording.BlockSize),
		device:     cfg.Recording.Device,
	}
	if cfg.Recording.EchoCancellation {
		v.processing = append(v.processing, procEcho)
	}
	if cfg.Recording.NoiseSuppression {
		v.processing = append(v.processing, procNoise)
	}
	if cfg.Recording.AutoGainControl {
		v.processing = append(v.processing, procGain)
	}
	return v
}

func (v recordingValues) apply(cfg *config.Config) error {
	rate, err := strconv.Atoi(strings.TrimSpace(v.sampleRate))
	if err != nil {
		return fmt.Errorf("sample rate: %w", err)
	}
	block, err := strconv.Atoi(strings.TrimSpace(v.blockSize))
	if err != nil {
		return fmt.Errorf("block size: %w", err)
	}
	has := func(name string) bool {
		for _, p := range v.processing {
			if p == name {
				return true
			}
		}
		return false
	}

	cfg.Recording.Backend = v.backend
	cfg.Recording.SampleRate = rate
	cfg.Recording.BlockSize = block
	cfg.Recording.Device = strings.TrimSpace(v.device)
	cfg.Recording.EchoCancellation = has(procEcho)
	cfg.Recording.NoiseSuppression = has(procNoise)
	cfg.Recording.AutoGainControl = has(procGain)
	return nil
}

func editRecording(cfg *config.Config) error {
	v := newRecordingValues(cfg)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Capture Backend").
				Options(
					huh.NewOption("PipeWire (pw-record) - Recommended", "pipewire"),
					huh.NewOption("miniaudio (in-process)", "malgo"),
				).
				Value(&v.backend),
			huh.NewInput().
				Title("Sample Rate (Hz)").
				Description("16000 is what the backend expects for speech").
				Placeholder("16000").
				Value(&v.sampleRate).
				Validate(validateInt(8000)),
			huh.NewInput().
				Title("Block Size (samples)").
				Description("Samples per frame sent to the backend").
				Placeholder("2048").
				Value(&v.blockSize).
				Validate(validateInt(1)),
			huh.NewInput().
				Title("Device").
				Description("Leave empty for the default source").
				Value(&v.device),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Audio Processing").
				Description("Requested from the capture device when supported").
				Options(
					huh.NewOption("Echo cancellation", procEcho),
					huh.NewOption("Noise suppression", procNoise),
					huh.NewOption("Automatic gain control", procGain),
				).
				Value(&v.processing),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}
	return v.apply(cfg)
}

type reconnectValues struct {
	maxAttempts, strategy, delay, maxDelay string
}

func newReconnectValues(cfg *config.Config) reconnectValues {
	return reconnectValues{
		maxAttempts: strconv.Itoa(cfg.Reconnect.MaxAttempts),
		strategy:    cfg.Reconnect.Strategy,
		delay:       cfg.Reconnect.Delay.String(),
		maxDelay:    cfg.Reconnect.MaxDelay.String(),
	}
}

func (v reconnectValues) apply(cfg *config.Config) error {
	attempts, err := strconv.Atoi(strings.TrimSpace(v.maxAttempts))
	if err != nil {
		return fmt.Errorf("max attempts: %w", err)
	}
	delay, err := time.ParseDuration(strings.TrimSpace(v.delay))
	if err != nil {
		return fmt.Errorf("delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(strings.TrimSpace(v.maxDelay))
	if err != nil {
		return fmt.Errorf("max delay: %w", err)
	}
	cfg.Reconnect.MaxAttempts = attempts
	cfg.Reconnect.Strategy = v.strategy
	cfg.Reconnect.Delay = delay
	cfg.Reconnect.MaxDelay = maxDelay
	return nil
}

func editReconnect(cfg *config.Config) error {
	v := newReconnectValues(cfg)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Max Attempts").
				Description("Reconnects after an unexpected drop; 0 disables").
				Placeholder("5").
				Value(&v.maxAttempts).
				Validate(validateInt(0)),
			huh.NewSelect[string]().
				Title("Strategy").
				Options(
					huh.NewOption("Fixed delay", config.StrategyFixed),
					huh.NewOption("Exponential backoff", config.StrategyExponential),
				).
				Value(&v.strategy),
			huh.NewInput().
				Title("Delay").
				Placeholder("3s").
				Value(&v.delay).
				Validate(validateDuration),
			huh.NewInput().
				Title("Max Delay").
				Description("Upper bound for exponential backoff").
				Placeholder("30s").
				Value(&v.maxDelay).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}
	return v.apply(cfg)
}

type telemetryValues struct {
	window, listenAddr string
}

func (v telemetryValues) apply(cfg *config.Config) error {
	window, err := time.ParseDuration(strings.TrimSpace(v.window))
	if err != nil {
		return fmt.Errorf("window: %w", err)
	}
	cfg.Telemetry.Window = window
	cfg.Metrics.ListenAddr = strings.TrimSpace(v.listenAddr)
	return nil
}

func editTelemetry(cfg *config.Config) error {
	v := telemetryValues{
		window:     cfg.Telemetry.Window.String(),
		listenAddr: cfg.Metrics.ListenAddr,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telemetry Window").
				Description("How often send throughput is summarized").
				Placeholder("5s").
				Value(&v.window).
				Validate(validateDuration),
			huh.NewInput().
				Title("Metrics Listen Address").
				Description("Serve Prometheus /metrics here; empty disables").
				Placeholder("127.0.0.1:9464").
				Value(&v.listenAddr).
				Validate(validateListenAddr),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}
	return v.apply(cfg)
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled

	desc := "Show notifications when the connection drops or recovers"
	if cfg.Notifications.Enabled {
		desc = fmt.Sprintf("Currently: enabled (%s). %s", cfg.Notifications.Type, desc)
	} else {
		desc = "Currently: disabled. " + desc
	}

	enableForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description(desc).
				Value(&enabled),
		),
	).WithTheme(getTheme())

	if err := enableForm.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	if !enabled {
		return nil
	}

	notifType := cfg.Notifications.Type
	if notifType == "" {
		notifType = "desktop"
	}

	typeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notification Type").
				Description("How should notifications be displayed?").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log to console only", "log"),
					huh.NewOption("None (silent)", "none"),
				).
				Value(&notifType),
		),
	).WithTheme(getTheme())

	if err := typeForm.Run(); err != nil {
		return err
	}

	cfg.Notifications.Type = notifType
	return nil
}
