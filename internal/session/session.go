// Package session wires capture, transport, transcript and telemetry for a
// single backend URL. A Session is constructed explicitly and owns every
// collaborator it creates.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/leonardotrapani/voicelink/internal/notify"
	"github.com/leonardotrapani/voicelink/internal/recording"
	"github.com/leonardotrapani/voicelink/internal/telemetry"
	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

type Config struct {
	URL             string
	Policy          transport.ReconnectPolicy
	ConnectTimeout  time.Duration
	Recording       recording.Config
	TelemetryWindow time.Duration
	// KeepAlive keeps Run blocked after the connection closes for good, so
	// a controller can call Reconnect. Foreground sessions leave it off.
	KeepAlive bool
}

// Deps are optional collaborators. Nil fields get production defaults.
type Deps struct {
	Capturer recording.Capturer
	Dialer   transport.Dialer
	Notifier notify.Notifier
	// Metrics is shared across sessions so collectors register once.
	Metrics *telemetry.Metrics
	// OnChange is called after transcript or connection changes.
	OnChange func()
	// OnVolume receives the RMS level of each captured frame.
	OnVolume func(float64)
}

// Status is a point-in-time view of the session.
type Status struct {
	State         transport.State
	Attempts      int
	Emotion       string
	BotResponding bool
	Ready         bool
	Volume        float64
	Entries       int
	Stats         telemetry.Snapshot
}

type Session struct {
	config     Config
	transport  *transport.Transport
	reconciler *transcript.Reconciler
	telemetry  *telemetry.Aggregator
	notifier   notify.Notifier
	onChange   func()

	terminal  chan error
	closeOnce sync.Once

	mu      sync.Mutex
	lastErr error
	wasOpen bool
}

// URL builds the backend URL <base>/<path>?ticket=<ticket>.
func URL(base, path, ticket string) (string, error) {
	u, err := transport.BuildURL(base, path, ticket)
	if err != nil {
		return "", &transport.InitError{Op: "build url", Err: err}
	}
	return u, nil
}

// New constructs the session graph. Nothing connects until Run or Reconnect.
func New(config Config, deps Deps) (*Session, error) {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	capturer := deps.Capturer
	if capturer == nil {
		c, err := recording.New(config.Recording)
		if err != nil {
			return nil, &transport.InitError{Op: "configure capture", Err: err}
		}
		capturer = c
	}

	s := &Session{
		config:     config,
		reconciler: transcript.NewReconciler(),
		telemetry:  telemetry.NewAggregator(config.TelemetryWindow, deps.Metrics),
		notifier:   deps.Notifier,
		onChange:   deps.OnChange,
		terminal:   make(chan error, 1),
	}
	s.reconciler.OnChange = s.changed
	s.reconciler.OnError = s.backendError

	tr, err := transport.New(transport.Config{
		URL:            config.URL,
		Policy:         config.Policy,
		ConnectTimeout: config.ConnectTimeout,
	}, transport.Options{
		Dialer:    deps.Dialer,
		Capturer:  capturer,
		Telemetry: s.telemetry,
		Handlers: transport.Handlers{
			OnStateChange: s.stateChanged,
			OnVolumeLevel: deps.OnVolume,
			OnEvent:       s.reconciler.Apply,
			OnError:       s.transportError,
		},
	})
	if err != nil {
		return nil, err
	}
	s.transport = tr
	return s, nil
}

// Run connects, then blocks until ctx is done or, unless KeepAlive is set,
// the connection ends for good. The session is closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	if err := s.transport.Initialize(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			go s.notifier.Error(fmt.Sprintf("failed to start session: %v", err))
		}
		return err
	}

	if s.config.KeepAlive {
		<-ctx.Done()
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.terminal:
		return err
	}
}

// Reconnect explicitly re-initializes the connection with a fresh retry
// budget. It is a no-op while connected.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.transport.Initialize(ctx)
}

// Close disposes the transport. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(s.transport.Dispose)
}

func (s *Session) Status() Status {
	return Status{
		State:         s.transport.State(),
		Attempts:      s.transport.Attempts(),
		Emotion:       s.reconciler.CurrentEmotion(),
		BotResponding: s.reconciler.BotResponding(),
		Ready:         s.reconciler.Ready(),
		Volume:        s.transport.Volume(),
		Entries:       len(s.reconciler.Complete()),
		Stats:         s.transport.Stats(),
	}
}

// Transcript returns a copy of the log including streaming entries.
func (s *Session) Transcript() []transcript.Entry {
	return s.reconciler.Entries()
}

// Err returns the transport error that ended the last connection, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) stateChanged(state transport.State) {
	s.mu.Lock()
	wasOpen := s.wasOpen
	if state == transport.Open {
		s.wasOpen = true
		s.lastErr = nil
	}
	err := s.lastErr
	s.mu.Unlock()

	switch state {
	case transport.Open:
		go s.notifier.Connected()
	case transport.Reconnecting:
		go s.notifier.Reconnecting(s.transport.Attempts(), s.config.Policy.MaxAttempts)
	case transport.Closed:
		if wasOpen {
			go s.notifier.Disconnected()
			select {
			case s.terminal <- err:
			default:
			}
		}
	}
	s.changed()
}

func (s *Session) transportError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	log.Printf("session: %v", err)
	if errors.Is(err, transport.ErrRetriesExhausted) {
		go s.notifier.Error("connection lost: " + err.Error())
	}
}

func (s *Session) backendError(err *transcript.BackendError) {
	log.Printf("session: %v", err)
	go s.notifier.Error(err.Error())
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
