package recording

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/leonardotrapani/voicelink/internal/audio"
)

// Recorder captures through a pw-record child process in f32 mode.
type Recorder struct {
	config    Config
	recording atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup

	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{
		config:   config,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
}

func NewDefaultRecorder() *Recorder { return NewRecorder(DefaultConfig()) }

func (r *Recorder) Active() bool {
	return r.recording.Load()
}

func (r *Recorder) Start(ctx context.Context, onFrame func(AudioFrame)) error {
	if onFrame == nil {
		return fmt.Errorf("onFrame callback required")
	}
	if !r.recording.CompareAndSwap(false, true) {
		log.Printf("recording: capture already active")
		return nil
	}

	if err := r.config.validate(); err != nil {
		r.recording.Store(false)
		return err
	}
	if _, err := r.lookPath("pw-record"); err != nil {
		r.recording.Store(false)
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}

	recordingCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := r.command(recordingCtx, "pw-record", r.buildPwRecordArgs()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		r.recording.Store(false)
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		r.recording.Store(false)
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		r.recording.Store(false)
		return fmt.Errorf("start pw-record: %w", err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.cancel = cancel
	r.mu.Unlock()

	// Log stderr lines to aid diagnostics.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("recording: pw-record stderr: %s", scanner.Text())
		}
	}()

	r.wg.Add(1)
	go r.captureLoop(recordingCtx, stdout, onFrame)

	log.Printf("recording: pipewire capture started (rate=%d, block=%d, device=%q)",
		r.config.SampleRate, r.config.BlockSize, r.config.Device)
	return nil
}

func (r *Recorder) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	if cancel == nil {
		return nil
	}
	log.Printf("recording: pipewire capture stopped")
	return nil
}

func (r *Recorder) captureLoop(ctx context.Context, stdout io.Reader, onFrame func(AudioFrame)) {
	defer func() {
		r.recording.Store(false)

		// Ensure the child process is reaped.
		r.mu.Lock()
		if r.cmd != nil {
			_ = r.cmd.Wait()
			r.cmd = nil
		}
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		r.mu.Unlock()

		r.wg.Done()
	}()

	blocks := newBlocker(r.config.BlockSize)
	buffer := make([]byte, r.config.BlockSize*4)
	var carry []byte

	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			data := append(carry, buffer[:n]...)
			whole := len(data) - len(data)%4
			blocks.push(audio.DecodeFloat32LE(data[:whole]), onFrame)
			carry = append([]byte(nil), data[whole:]...)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return
			}
			log.Printf("recording: read audio: %v", readErr)
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (r *Recorder) buildPwRecordArgs() []string {
	args := []string{
		"--format", "f32",
		"--rate", strconv.Itoa(r.config.SampleRate),
		"--channels", strconv.Itoa(r.config.Channels),
		"--latency", strconv.Itoa(r.config.BlockSize) + "/" + strconv.Itoa(r.config.SampleRate),
	}
	if r.config.Device != "" {
		args = append(args, "--target", r.config.Device)
	}
	args = append(args, "-") // stdout
	return args
}
