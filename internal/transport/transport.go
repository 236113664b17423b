// Package transport owns one logical websocket connection to the voice
// backend: it streams captured audio out, decodes events coming back, and
// reconnects with a bounded policy when the connection drops abnormally.
//
// All connection state is owned by a single loop goroutine. Public methods,
// capture callbacks, socket readers and the reconnect timer only post work
// into that loop, so no lock guards the state machine itself.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/voicelink/internal/audio"
	"github.com/leonardotrapani/voicelink/internal/protocol"
	"github.com/leonardotrapani/voicelink/internal/recording"
	"github.com/leonardotrapani/voicelink/internal/telemetry"
)

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultSendQueue      = 64

	closeWriteTimeout = 2 * time.Second
	sendWriteTimeout  = 5 * time.Second
	dropLogInterval   = 5 * time.Second
	// initialLogMessages is how many sends are logged individually after open.
	initialLogMessages = 5
)

// Config configures a transport for one target URL.
type Config struct {
	URL            string
	Policy         ReconnectPolicy
	ConnectTimeout time.Duration
	SendQueue      int
}

// Handlers are invoked from the transport loop, in order. They must not
// block for long and must not call Initialize or Dispose.
type Handlers struct {
	OnStateChange func(State)
	OnVolumeLevel func(float64)
	OnEvent       func(protocol.Event)
	OnError       func(error)
}

// Options carries the transport's collaborators. Dialer defaults to a
// gorilla websocket dialer; Capturer and Telemetry may be nil.
type Options struct {
	Dialer    Dialer
	Capturer  recording.Capturer
	Telemetry *telemetry.Aggregator
	Handlers  Handlers
}

type initResult struct {
	err error
}

// Transport is a single streaming connection with reconnection.
type Transport struct {
	config    Config
	dialer    Dialer
	capture   recording.Capturer
	telemetry *telemetry.Aggregator
	handlers  Handlers

	cmds     chan func()
	outbound chan []byte
	quit     chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc

	disposeOnce sync.Once
	disposed    atomic.Bool
	// captureMu serializes capture start against Dispose.
	captureMu sync.Mutex

	// mirrors of loop state for lock-free reads
	stateMirror    atomic.Int32
	attemptsMirror atomic.Int32
	volume         atomic.Uint64
	lastDropLog    atomic.Int64

	// owned by the loop goroutine
	state      State
	conn       Conn
	gen        uint64
	attempt    int
	timer      *time.Timer
	dialCancel context.CancelFunc
	waiters    []chan initResult
	sent       int
	stopped    bool
}

// New validates config and starts the transport loop. The transport stays
// Idle until Initialize is called and must be released with Dispose.
func New(config Config, opts Options) (*Transport, error) {
	if err := validateURL(config.URL); err != nil {
		return nil, &InitError{Op: "validate url", Err: err}
	}
	if config.Policy.MaxAttempts < 0 {
		config.Policy.MaxAttempts = 0
	}
	if config.Policy.Delay == nil {
		config.Policy.Delay = FixedDelay(DefaultReconnectDelay)
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.SendQueue <= 0 {
		config.SendQueue = DefaultSendQueue
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		config:     config,
		dialer:     opts.Dialer,
		capture:    opts.Capturer,
		telemetry:  opts.Telemetry,
		handlers:   opts.Handlers,
		cmds:       make(chan func(), 16),
		outbound:   make(chan []byte, config.SendQueue),
		quit:       make(chan struct{}),
		baseCtx:    ctx,
		baseCancel: cancel,
		state:      Idle,
	}
	go t.loop()
	return t, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// State returns the current connection state.
func (t *Transport) State() State {
	return State(t.stateMirror.Load())
}

// Attempts returns the number of reconnect attempts in the current cycle.
func (t *Transport) Attempts() int {
	return int(t.attemptsMirror.Load())
}

// Volume returns the RMS level of the last frame handed to SendFrame.
func (t *Transport) Volume() float64 {
	return math.Float64frombits(t.volume.Load())
}

// Stats returns the last telemetry snapshot.
func (t *Transport) Stats() telemetry.Snapshot {
	return t.telemetry.Last()
}

// Initialize connects, then starts capture and telemetry. It is a no-op
// while connected or connecting. It returns once the first dial resolves.
// If ctx ends first and no other caller is waiting, the dial is abandoned
// and the transport is left Closed.
func (t *Transport) Initialize(ctx context.Context) error {
	if t.disposed.Load() {
		return ErrDisposed
	}

	result := make(chan initResult, 1)
	if !t.post(func() { t.beginConnect(result) }) {
		return ErrDisposed
	}

	var res initResult
	select {
	case res = <-result:
	case <-ctx.Done():
		done := make(chan struct{})
		if t.post(func() {
			t.abandon(result)
			close(done)
		}) {
			<-done
		}
		select {
		case res = <-result:
			// the dial resolved before the abandon ran
		default:
			return ctx.Err()
		}
	}
	return res.err
}

// Send queues an encoded frame. Frames are only transmitted while Open;
// otherwise they are dropped. Send never blocks.
func (t *Transport) Send(frame []byte) {
	if len(frame) == 0 || t.disposed.Load() {
		return
	}
	if t.State() != Open {
		t.drop("connection not open")
		return
	}
	select {
	case t.outbound <- frame:
	default:
		t.drop("send queue full")
	}
}

// SendFrame encodes a captured frame to PCM16 and sends it.
func (t *Transport) SendFrame(frame recording.AudioFrame) {
	if frame.Len() == 0 || t.disposed.Load() {
		return
	}
	level := audio.RMS(frame.Samples)
	t.volume.Store(math.Float64bits(level))
	if t.handlers.OnVolumeLevel != nil {
		t.handlers.OnVolumeLevel(level)
	}
	t.Send(audio.EncodePCM16(frame.Samples))
}

// Dispose stops capture, closes the connection normally, cancels any
// pending reconnect and stops the loop. It is safe to call from any
// goroutine except a Handlers callback, any number of times.
func (t *Transport) Dispose() {
	t.disposeOnce.Do(func() {
		t.disposed.Store(true)

		t.captureMu.Lock()
		if t.capture != nil {
			if err := t.capture.Stop(); err != nil {
				log.Printf("transport: stop capture: %v", err)
			}
		}
		t.captureMu.Unlock()

		done := make(chan struct{})
		if t.post(func() {
			t.closeNormally("client disposed")
			t.failWaiters(ErrDisposed)
			t.stopped = true
			close(done)
		}) {
			<-done
		}
		<-t.quit
		t.baseCancel()

		t.telemetry.Stop()
		t.telemetry.Reset()
		t.volume.Store(0)
		log.Printf("transport: disposed")
	})
}

func (t *Transport) post(fn func()) bool {
	select {
	case <-t.quit:
		return false
	default:
	}
	select {
	case t.cmds <- fn:
		return true
	case <-t.quit:
		return false
	}
}

func (t *Transport) loop() {
	defer close(t.quit)
	for {
		select {
		case fn := <-t.cmds:
			fn()
			if t.stopped {
				return
			}
		case frame := <-t.outbound:
			t.write(frame)
		}
	}
}

func (t *Transport) setState(s State) {
	if t.state == s {
		return
	}
	log.Printf("transport: %s -> %s", t.state, s)
	t.state = s
	t.stateMirror.Store(int32(s))
	if t.handlers.OnStateChange != nil {
		t.handlers.OnStateChange(s)
	}
}

func (t *Transport) setAttempt(n int) {
	t.attempt = n
	t.attemptsMirror.Store(int32(n))
}

func (t *Transport) reportError(err error) {
	if t.handlers.OnError != nil {
		t.handlers.OnError(err)
	}
}

func (t *Transport) beginConnect(result chan initResult) {
	switch t.state {
	case Open, Connecting:
		result <- initResult{}
		return
	case Reconnecting:
		t.stopTimer()
	}
	// an explicit initialize starts a fresh retry budget
	t.setAttempt(0)
	t.waiters = append(t.waiters, result)
	t.connect()
}

// abandon drops a waiter whose caller gave up. The pending dial is cancelled
// once nobody is left waiting for it.
func (t *Transport) abandon(result chan initResult) {
	i := slices.Index(t.waiters, result)
	if i < 0 {
		return
	}
	t.waiters = slices.Delete(t.waiters, i, i+1)
	if len(t.waiters) > 0 || t.state != Connecting {
		return
	}
	log.Printf("transport: connect abandoned by caller")
	t.gen++
	t.cancelDial()
	t.setState(Closed)
}

func (t *Transport) cancelDial() {
	if t.dialCancel != nil {
		t.dialCancel()
		t.dialCancel = nil
	}
}

func (t *Transport) connect() {
	t.gen++
	gen := t.gen
	t.setState(Connecting)

	ctx, cancel := context.WithTimeout(t.baseCtx, t.config.ConnectTimeout)
	t.dialCancel = cancel
	go func() {
		defer cancel()
		conn, err := t.dialer.Dial(ctx, t.config.URL)
		if !t.post(func() { t.dialed(gen, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

func (t *Transport) dialed(gen uint64, conn Conn, err error) {
	if gen != t.gen || t.state != Connecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	t.dialCancel = nil

	if err != nil {
		log.Printf("transport: connect failed: %v", err)
		if t.attempt > 0 {
			t.abnormalClose(err)
			return
		}
		t.setState(Closed)
		t.failWaiters(&InitError{Op: "connect", Err: err})
		return
	}

	t.conn = conn
	t.sent = 0
	t.setAttempt(0)
	t.setState(Open)

	if err := t.startCapture(); err != nil {
		log.Printf("transport: capture start failed, closing connection: %v", err)
		initErr := &InitError{Op: "start capture", Err: err}
		if len(t.waiters) == 0 {
			// a reconnect has no caller to return the error to
			t.reportError(initErr)
		}
		t.closeNormally("capture unavailable")
		t.release()
		t.failWaiters(initErr)
		return
	}
	t.telemetry.Start()

	for _, w := range t.waiters {
		w <- initResult{}
	}
	t.waiters = nil

	go t.read(gen, conn)
}

func (t *Transport) failWaiters(err error) {
	for _, w := range t.waiters {
		w <- initResult{err: err}
	}
	t.waiters = nil
}

func (t *Transport) read(gen uint64, conn Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			code := closeCode(err)
			t.post(func() { t.closed(gen, code, err) })
			return
		}

		switch messageType {
		case websocket.TextMessage:
			ev, err := protocol.Decode(data)
			if err != nil {
				log.Printf("transport: ignoring malformed message: %v", err)
				continue
			}
			t.post(func() { t.dispatch(gen, ev) })
		default:
			log.Printf("transport: ignoring inbound message of type %d (%d bytes)", messageType, len(data))
		}
	}
}

func (t *Transport) dispatch(gen uint64, ev protocol.Event) {
	if gen != t.gen {
		return
	}
	if u, ok := ev.(protocol.Unknown); ok {
		log.Printf("transport: unhandled message type %q", u.Type)
	}
	if t.handlers.OnEvent != nil {
		t.handlers.OnEvent(ev)
	}
}

func (t *Transport) closed(gen uint64, code int, err error) {
	if gen != t.gen || t.conn == nil {
		return
	}
	t.conn.Close()
	t.conn = nil

	if code == websocket.CloseNormalClosure {
		log.Printf("transport: connection closed normally")
		t.release()
		t.setState(Closed)
		return
	}
	log.Printf("transport: connection lost (code %d): %v", code, err)
	t.abnormalClose(err)
}

func (t *Transport) abnormalClose(cause error) {
	if t.attempt >= t.config.Policy.MaxAttempts {
		// the error is reported before the final transition so observers of
		// Closed already know why
		err := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, t.attempt, cause)
		log.Printf("transport: %v", err)
		t.reportError(err)
		t.release()
		t.setState(Closed)
		return
	}

	t.setAttempt(t.attempt + 1)
	delay := t.config.Policy.delay(t.attempt)
	t.setState(Reconnecting)
	log.Printf("transport: reconnecting in %s (attempt %d/%d)", delay, t.attempt, t.config.Policy.MaxAttempts)

	gen := t.gen
	t.timer = time.AfterFunc(delay, func() {
		t.post(func() { t.reconnectDue(gen) })
	})
}

func (t *Transport) reconnectDue(gen uint64) {
	if gen != t.gen || t.state != Reconnecting {
		return
	}
	t.timer = nil
	t.connect()
}

func (t *Transport) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// closeNormally tears down the connection with code 1000 and invalidates
// every in-flight dial, read and timer.
func (t *Transport) closeNormally(reason string) {
	t.gen++
	t.stopTimer()
	t.setAttempt(0)

	if t.conn != nil {
		t.setState(Closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		if err := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			log.Printf("transport: write close frame: %v", err)
		}
		t.conn.Close()
		t.conn = nil
	}
	t.setState(Closed)
}

// release stops capture and telemetry once the connection is terminally
// closed. The next Initialize acquires them again.
func (t *Transport) release() {
	t.stopCapture()
	t.telemetry.Stop()
}

// startCapture runs on the loop. Frames go straight to the outbound queue,
// so capture callbacks never wait on the loop.
func (t *Transport) startCapture() error {
	if t.capture == nil {
		return nil
	}
	t.captureMu.Lock()
	defer t.captureMu.Unlock()
	if t.disposed.Load() {
		return ErrDisposed
	}
	if t.capture.Active() {
		return nil
	}
	return t.capture.Start(context.Background(), t.SendFrame)
}

func (t *Transport) stopCapture() {
	if t.capture == nil {
		return
	}
	t.captureMu.Lock()
	defer t.captureMu.Unlock()
	if err := t.capture.Stop(); err != nil {
		log.Printf("transport: stop capture: %v", err)
	}
}

func (t *Transport) write(frame []byte) {
	if t.state != Open || t.conn == nil {
		t.drop("connection not open")
		return
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(sendWriteTimeout))
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		// the reader observes the broken connection and drives reconnection
		log.Printf("transport: send failed: %v", err)
		t.telemetry.RecordDrop()
		return
	}
	t.telemetry.Record(len(frame))
	if t.sent < initialLogMessages {
		t.sent++
		log.Printf("transport: sent audio frame %d (%d bytes)", t.sent, len(frame))
	}
}

func (t *Transport) drop(reason string) {
	t.telemetry.RecordDrop()
	now := time.Now().UnixNano()
	last := t.lastDropLog.Load()
	if now-last < int64(dropLogInterval) {
		return
	}
	if t.lastDropLog.CompareAndSwap(last, now) {
		log.Printf("transport: dropping audio frame: %s (state %s)", reason, t.State())
	}
}
