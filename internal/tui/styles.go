package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Base styles for voicelink TUI components
var (
	// Header style for titles and section headers
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Subtle style for hints and key help
	StyleSubtle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Italic(true)

	// Speaker labels in the transcript
	StyleUser = lipgloss.NewStyle().
			Foreground(ColorUser).
			Bold(true)

	StyleBot = lipgloss.NewStyle().
			Foreground(ColorBot).
			Bold(true)

	// Streaming entries are still being spoken
	StyleStreaming = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	// Box style for bordered containers
	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)
)

const logoASCII = `
            _          _ _       _    
__   _____ (_) ___ ___| (_)_ __ | | __
\ \ / / _ \| |/ __/ _ \ | | '_ \| |/ /
 \ V / (_) | | (_|  __/ | | | | |   < 
  \_/ \___/|_|\___\___|_|_|_| |_|_|\_\`

// Logo returns the voicelink ASCII art
func Logo() string {
	return StyleHeader.Render(strings.Trim(logoASCII, "\n"))
}
