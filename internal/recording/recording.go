package recording

import (
	"context"
	"fmt"
	"time"
)

// AudioFrame is one fixed-size block of mono float samples in [-1, 1].
// Seq increases monotonically per capture session and is only used for
// ordering diagnostics.
type AudioFrame struct {
	Samples   []float32
	Seq       uint64
	Timestamp time.Time
}

// Len returns the number of samples in the frame.
func (f AudioFrame) Len() int { return len(f.Samples) }

// Capturer acquires audio from the local input device.
type Capturer interface {
	// Start begins delivering frames to onFrame in arrival order. If a
	// capture session is already active the call is a no-op.
	Start(ctx context.Context, onFrame func(AudioFrame)) error
	// Stop releases the device. Safe to call when nothing is active.
	Stop() error
	Active() bool
}

const (
	BackendPipeWire = "pipewire"
	BackendMalgo    = "malgo"
)

type Config struct {
	Backend    string
	SampleRate int
	Channels   int
	// BlockSize is the number of samples per delivered frame.
	BlockSize int
	Device    string

	// Input processing requested from the device layer.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

func DefaultConfig() Config {
	return Config{
		Backend:          BackendPipeWire,
		SampleRate:       16000,
		Channels:         1,
		BlockSize:        2048,
		Device:           "",
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// New returns a capturer for the configured backend.
func New(config Config) (Capturer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	switch config.Backend {
	case BackendPipeWire, "":
		return NewRecorder(config), nil
	case BackendMalgo:
		return NewMalgoCapturer(config), nil
	default:
		return nil, fmt.Errorf("unsupported capture backend: %s", config.Backend)
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("invalid Channels: %d (only mono is supported)", c.Channels)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("invalid BlockSize: %d", c.BlockSize)
	}
	return nil
}

// blocker slices an arbitrary sample stream into fixed-size frames.
type blocker struct {
	size    int
	pending []float32
	seq     uint64
}

func newBlocker(size int) *blocker {
	return &blocker{size: size, pending: make([]float32, 0, size*2)}
}

func (b *blocker) push(samples []float32, emit func(AudioFrame)) {
	b.pending = append(b.pending, samples...)
	for len(b.pending) >= b.size {
		block := make([]float32, b.size)
		copy(block, b.pending[:b.size])
		b.pending = append(b.pending[:0], b.pending[b.size:]...)
		b.seq++
		emit(AudioFrame{Samples: block, Seq: b.seq, Timestamp: time.Now()})
	}
}
