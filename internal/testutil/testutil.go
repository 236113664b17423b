package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/voicelink/internal/recording"
)

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// MockAudioFrame creates a test audio frame
func MockAudioFrame(samples ...float32) recording.AudioFrame {
	return recording.AudioFrame{Samples: samples, Timestamp: time.Now()}
}

// MockCapturer implements recording.Capturer. Frames are delivered once per
// Start from a separate goroutine.
type MockCapturer struct {
	Frames     []recording.AudioFrame
	StartError error

	mu     sync.Mutex
	active bool
	starts int
}

func (m *MockCapturer) Start(ctx context.Context, onFrame func(recording.AudioFrame)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartError != nil {
		return m.StartError
	}
	if m.active {
		return nil
	}
	m.active = true
	m.starts++

	frames := append([]recording.AudioFrame(nil), m.Frames...)
	go func() {
		for _, f := range frames {
			if ctx.Err() != nil || !m.Active() {
				return
			}
			onFrame(f)
		}
	}()
	return nil
}

func (m *MockCapturer) Stop() error {
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
	return nil
}

func (m *MockCapturer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Starts counts capture sessions begun.
func (m *MockCapturer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Backend is a websocket server that greets every connection with a fixed
// script of text frames and counts the binary frames it receives.
type Backend struct {
	URL string

	srv      *httptest.Server
	greeting []string

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	total   int
	binary  int
	tickets []string
}

// NewBackend starts a backend that is shut down with the test.
func NewBackend(t *testing.T, greeting ...string) *Backend {
	t.Helper()
	b := &Backend{greeting: greeting, conns: make(map[*websocket.Conn]struct{})}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	b.URL = b.srv.URL
	t.Cleanup(func() {
		b.CloseAll(websocket.CloseGoingAway)
		b.srv.Close()
	})
	return b
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.total++
	b.tickets = append(b.tickets, r.URL.Query().Get("ticket"))
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
	}()

	for _, msg := range b.greeting {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	for {
		mt, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.BinaryMessage {
			b.mu.Lock()
			b.binary++
			b.mu.Unlock()
		}
	}
}

// CloseAll sends a close frame with code to every open connection.
func (b *Backend) CloseAll(code int) {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
	}
}

// Connections counts accepted websocket connections.
func (b *Backend) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Open counts connections not yet closed.
func (b *Backend) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *Backend) BinaryFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.binary
}

// Tickets returns the ticket query parameter of each connection.
func (b *Backend) Tickets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tickets...)
}
