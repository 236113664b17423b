package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

// Source is what the live view reads on every redraw.
type Source interface {
	Status() session.Status
	Transcript() []transcript.Entry
}

type changedMsg struct{}

type reconnectedMsg struct{ err error }

// Live renders a session in the terminal. Refresh may be called from any
// goroutine, including before Run; bursts of changes collapse into one redraw.
type Live struct {
	changes chan struct{}
}

func NewLive() *Live {
	return &Live{changes: make(chan struct{}, 1)}
}

// Refresh schedules a redraw. It never blocks.
func (l *Live) Refresh() {
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

// Run blocks until the user quits or ctx is done. reconnect is invoked when
// the user presses r and may be nil.
func (l *Live) Run(ctx context.Context, source Source, reconnect func() error) error {
	m := newLiveModel(source, reconnect, l.changes)
	_, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

type liveModel struct {
	source    Source
	reconnect func() error
	changes   <-chan struct{}
	spinner   spinner.Model

	status  session.Status
	entries []transcript.Entry
	errText string
	width   int
	height  int
}

func newLiveModel(source Source, reconnect func() error, changes <-chan struct{}) liveModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = StyleWarning
	return liveModel{
		source:    source,
		reconnect: reconnect,
		changes:   changes,
		spinner:   sp,
		status:    source.Status(),
		entries:   source.Transcript(),
	}
}

func (m liveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.changes))
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			if m.reconnect == nil {
				return m, nil
			}
			m.errText = ""
			reconnect := m.reconnect
			return m, func() tea.Msg { return reconnectedMsg{err: reconnect()} }
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case changedMsg:
		m.status = m.source.Status()
		m.entries = m.source.Transcript()
		return m, waitForChange(m.changes)
	case reconnectedMsg:
		if msg.err != nil {
			m.errText = "reconnect failed: " + msg.err.Error()
		}
		m.status = m.source.Status()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m liveModel) View() string {
	var b strings.Builder

	header := RenderStatus(m.status)
	if m.status.State == transport.Connecting || m.status.State == transport.Reconnecting {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(RenderStats(m.status))
	b.WriteString("\n\n")

	if m.errText != "" {
		b.WriteString(StyleError.Render(m.errText))
		b.WriteString("\n\n")
	}

	b.WriteString(RenderTranscript(tail(m.entries, m.transcriptRows())))
	b.WriteString("\n\n")
	b.WriteString(StyleSubtle.Render("r reconnect • q quit"))
	return b.String()
}

// transcriptRows is how many entries fit below the header. Zero means the
// size is unknown and everything is shown.
func (m liveModel) transcriptRows() int {
	if m.height == 0 {
		return 0
	}
	rows := m.height - 6
	if m.errText != "" {
		rows -= 2
	}
	return max(rows, 1)
}

func tail(entries []transcript.Entry, n int) []transcript.Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
