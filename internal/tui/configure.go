package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/voicelink/internal/config"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionServer        ConfigSection = "server"
	SectionRecording     ConfigSection = "recording"
	SectionReconnect     ConfigSection = "reconnect"
	SectionTelemetry     ConfigSection = "telemetry"
	SectionNotifications ConfigSection = "notifications"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Configure runs the menu-based configuration editor on a copy of cfg.
func Configure(cfg *config.Config) (*ConfigureResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	edited := *cfg

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(&edited)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			if err := edited.Validate(); err != nil {
				fmt.Println(StyleError.Render(err.Error()))
				if !confirm("Configuration is invalid. Keep editing?", "Edit", "Discard") {
					return &ConfigureResult{Cancelled: true}, nil
				}
				continue
			}
			confirmed, err := showSummary(&edited)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: &edited}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionServer:
			_ = editServer(&edited)
		case SectionRecording:
			_ = editRecording(&edited)
		case SectionReconnect:
			_ = editReconnect(&edited)
		case SectionTelemetry:
			_ = editTelemetry(&edited)
		case SectionNotifications:
			_ = editNotifications(&edited)
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatServerLabel(cfg), SectionServer),
		huh.NewOption(formatRecordingLabel(cfg), SectionRecording),
		huh.NewOption(formatReconnectLabel(cfg), SectionReconnect),
		huh.NewOption(formatTelemetryLabel(cfg), SectionTelemetry),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

func confirm(title, yes, no string) bool {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative(yes).
				Negative(no).
				Value(&ok),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	fmt.Println(summary(cfg))

	return confirm("Save this configuration?", "Save", "Cancel"), nil
}

func summary(cfg *config.Config) string {
	row := func(label, value string) string {
		return fmt.Sprintf("  %s %s\n", StyleLabel.Render(label), value)
	}

	url, err := cfg.URL()
	if err != nil {
		url = StyleError.Render(err.Error())
	}
	out := row("Backend:", url)
	out += row("Ticket:", maskTicket(cfg.Server.Ticket))
	out += row("Capture:", fmt.Sprintf("%s, %d Hz, %d samples/frame",
		cfg.Recording.Backend, cfg.Recording.SampleRate, cfg.Recording.BlockSize))
	out += row("Reconnect:", formatReconnectLabel(cfg))

	if cfg.Metrics.ListenAddr != "" {
		out += row("Metrics:", "http://"+cfg.Metrics.ListenAddr+"/metrics")
	} else {
		out += row("Metrics:", "disabled")
	}
	if cfg.Notifications.Enabled {
		out += row("Notifications:", cfg.Notifications.Type)
	} else {
		out += row("Notifications:", "disabled")
	}
	return out
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
