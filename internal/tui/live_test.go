package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/leonardotrapani/voicelink/internal/session"
	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

type fakeSource struct {
	mu      sync.Mutex
	status  session.Status
	entries []transcript.Entry
}

func (s *fakeSource) Status() session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeSource) Transcript() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Entry(nil), s.entries...)
}

func (s *fakeSource) set(state transport.State, entries ...transcript.Entry) {
	s.mu.Lock()
	s.status.State = state
	s.entries = entries
	s.mu.Unlock()
}

func complete(sp transcript.Speaker, text string) transcript.Entry {
	return transcript.Entry{Speaker: sp, Text: text, Status: transcript.Complete}
}

func TestLive_RefreshNeverBlocks(t *testing.T) {
	l := NewLive()
	for range 10 {
		l.Refresh()
	}
	if len(l.changes) != 1 {
		t.Errorf("pending changes = %d, want 1", len(l.changes))
	}
}

func TestLiveModel_ChangeRefreshesView(t *testing.T) {
	src := &fakeSource{}
	src.set(transport.Connecting)
	changes := make(chan struct{}, 1)
	m := newLiveModel(src, nil, changes)

	if !strings.Contains(m.View(), "CONNECTING") {
		t.Fatalf("View() = %q, want connecting state", m.View())
	}

	src.set(transport.Open, complete(transcript.User, "hello"))
	updated, cmd := m.Update(changedMsg{})
	m = updated.(liveModel)
	if cmd == nil {
		t.Error("changedMsg should re-arm the change listener")
	}

	view := m.View()
	if !strings.Contains(view, "OPEN") || !strings.Contains(view, "You: hello") {
		t.Errorf("View() = %q", view)
	}
}

func TestLiveModel_TailFitsHeight(t *testing.T) {
	src := &fakeSource{}
	var entries []transcript.Entry
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		entries = append(entries, complete(transcript.Bot, text))
	}
	src.set(transport.Open, entries...)
	m := newLiveModel(src, nil, make(chan struct{}, 1))

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	m = updated.(liveModel)

	view := m.View()
	if strings.Contains(view, "Bot: one") || strings.Contains(view, "Bot: two") || strings.Contains(view, "Bot: three") {
		t.Errorf("View() shows entries that do not fit: %q", view)
	}
	if !strings.Contains(view, "Bot: four") || !strings.Contains(view, "Bot: five") {
		t.Errorf("View() lost latest entries: %q", view)
	}
}

func TestLiveModel_Reconnect(t *testing.T) {
	src := &fakeSource{}
	src.set(transport.Closed)

	calls := 0
	m := newLiveModel(src, func() error {
		calls++
		return errors.New("connection refused")
	}, make(chan struct{}, 1))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("r should schedule a reconnect")
	}
	msg := cmd()
	if calls != 1 {
		t.Fatalf("reconnect calls = %d, want 1", calls)
	}

	updated, _ := m.Update(msg)
	m = updated.(liveModel)
	if !strings.Contains(m.View(), "reconnect failed: connection refused") {
		t.Errorf("View() = %q, want reconnect error", m.View())
	}
}

func TestLiveModel_QuitKeys(t *testing.T) {
	m := newLiveModel(&fakeSource{}, nil, make(chan struct{}, 1))
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("%s: no command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: command is not quit", key)
		}
	}
}

func TestTail(t *testing.T) {
	entries := []transcript.Entry{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	if got := tail(entries, 0); len(got) != 3 {
		t.Errorf("tail(0) = %d entries, want 3", len(got))
	}
	if got := tail(entries, 2); len(got) != 2 || got[0].Text != "b" {
		t.Errorf("tail(2) = %+v", got)
	}
	if got := tail(entries, 5); len(got) != 3 {
		t.Errorf("tail(5) = %d entries, want 3", len(got))
	}
}
