package tui

import (
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/telemetry"
	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestRenderEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry transcript.Entry
		want  string
	}{
		{
			name:  "complete user",
			entry: transcript.Entry{Speaker: transcript.User, Text: "hello", Status: transcript.Complete},
			want:  "You: hello",
		},
		{
			name:  "complete bot",
			entry: transcript.Entry{Speaker: transcript.Bot, Text: "hi there", Status: transcript.Complete},
			want:  "Bot: hi there",
		},
		{
			name:  "streaming bot",
			entry: transcript.Entry{Speaker: transcript.Bot, Text: "hi th", Status: transcript.Streaming},
			want:  "Bot: hi th…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderEntry(tt.entry); got != tt.want {
				t.Errorf("RenderEntry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTranscript(t *testing.T) {
	if got := RenderTranscript(nil); got != "No messages yet" {
		t.Errorf("RenderTranscript(nil) = %q", got)
	}

	got := RenderTranscript([]transcript.Entry{
		{Speaker: transcript.User, Text: "one", Status: transcript.Complete},
		{Speaker: transcript.Bot, Text: "two", Status: transcript.Streaming},
	})
	if want := "You: one\nBot: two…"; got != want {
		t.Errorf("RenderTranscript() = %q, want %q", got, want)
	}
}

func TestVolumeMeter(t *testing.T) {
	tests := []struct {
		level  float64
		filled int
	}{
		{0, 0},
		{0.125, 5},
		{0.25, 10},
		{1, 10},
		{-1, 0},
	}
	for _, tt := range tests {
		got := VolumeMeter(tt.level, 10)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("VolumeMeter(%v) filled = %d, want %d", tt.level, n, tt.filled)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != 10 {
			t.Errorf("VolumeMeter(%v) width = %d, want 10", tt.level, n)
		}
	}
	if VolumeMeter(0.5, 0) != "" {
		t.Error("VolumeMeter() with zero width should be empty")
	}
}

func TestRenderStatus(t *testing.T) {
	got := RenderStatus(session.Status{
		State:         transport.Reconnecting,
		Attempts:      2,
		Emotion:       "HAPPY",
		BotResponding: true,
	})
	for _, want := range []string{"RECONNECTING", "attempt 2", "emotion HAPPY", "bot is responding"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderStatus() = %q, missing %q", got, want)
		}
	}

	got = RenderStatus(session.Status{State: transport.Open, Emotion: "NEUTRAL"})
	if strings.Contains(got, "attempt") || strings.Contains(got, "responding") {
		t.Errorf("RenderStatus() = %q, unexpected detail for open state", got)
	}
}

func TestRenderStats(t *testing.T) {
	got := RenderStats(session.Status{Stats: telemetry.Snapshot{
		TotalMessages:  12,
		TotalBytes:     4096,
		BytesPerSecond: 512,
		DroppedFrames:  3,
	}})
	for _, want := range []string{"sent 12 msgs (4.0 KiB)", "512 B/s", "dropped 3"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderStats() = %q, missing %q", got, want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[uint64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KiB",
		1536:        "1.5 KiB",
		1024 * 1024: "1.0 MiB",
	}
	for in, want := range tests {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
