package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

const (
	streamingMarker = "…"
	meterWidth      = 20
	// speech RMS rarely exceeds 0.25, so the meter is scaled up to use its width
	meterGain = 4.0
)

func speakerLabel(s transcript.Speaker) string {
	if s == transcript.Bot {
		return StyleBot.Render("Bot:")
	}
	return StyleUser.Render("You:")
}

// RenderEntry formats a single transcript line. Streaming entries are dimmed
// and end with an ellipsis.
func RenderEntry(e transcript.Entry) string {
	if e.Status == transcript.Streaming {
		return speakerLabel(e.Speaker) + " " + StyleStreaming.Render(e.Text+streamingMarker)
	}
	return speakerLabel(e.Speaker) + " " + e.Text
}

// RenderTranscript formats entries oldest first, one per line.
func RenderTranscript(entries []transcript.Entry) string {
	if len(entries) == 0 {
		return StyleMuted.Render("No messages yet")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, RenderEntry(e))
	}
	return strings.Join(lines, "\n")
}

// StateBadge colors a connection state.
func StateBadge(state transport.State) string {
	label := strings.ToUpper(state.String())
	switch state {
	case transport.Open:
		return StyleSuccess.Bold(true).Render(label)
	case transport.Connecting, transport.Reconnecting:
		return StyleWarning.Bold(true).Render(label)
	case transport.Closed:
		return StyleError.Render(label)
	default:
		return StyleMuted.Render(label)
	}
}

// VolumeMeter draws level (an RMS in [0,1]) as a bar of the given width.
func VolumeMeter(level float64, width int) string {
	if width <= 0 {
		return ""
	}
	scaled := math.Min(math.Max(level*meterGain, 0), 1)
	filled := int(math.Round(scaled * float64(width)))
	return StyleSuccess.Render(strings.Repeat("█", filled)) +
		StyleSubtle.Render(strings.Repeat("░", width-filled))
}

// RenderStatus formats the one-line session summary shown above the
// transcript.
func RenderStatus(st session.Status) string {
	parts := []string{StateBadge(st.State)}
	if st.State == transport.Reconnecting {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("attempt %d", st.Attempts)))
	}
	parts = append(parts,
		StyleLabel.Render("emotion")+" "+st.Emotion,
		StyleLabel.Render("mic")+" "+VolumeMeter(st.Volume, meterWidth),
	)
	if st.BotResponding {
		parts = append(parts, StyleMuted.Render("bot is responding"))
	}
	return strings.Join(parts, StyleSubtle.Render("  •  "))
}

// RenderStats formats telemetry counters.
func RenderStats(st session.Status) string {
	s := st.Stats
	return lipgloss.JoinHorizontal(lipgloss.Top,
		StyleMuted.Render(fmt.Sprintf("sent %d msgs (%s)", s.TotalMessages, humanBytes(s.TotalBytes))),
		StyleMuted.Render(fmt.Sprintf("  %s/s", humanBytes(uint64(s.BytesPerSecond)))),
		StyleMuted.Render(fmt.Sprintf("  dropped %d", s.DroppedFrames)),
	)
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
