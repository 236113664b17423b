package recording

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/leonardotrapani/voicelink/internal/audio"
)

// MalgoCapturer captures through miniaudio. The device callback runs on the
// audio thread, so frames are handed off to a goroutine to keep onFrame off it.
type MalgoCapturer struct {
	config Config

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	frameCh chan []float32
	done    chan struct{}
}

func NewMalgoCapturer(config Config) *MalgoCapturer {
	return &MalgoCapturer{config: config}
}

func (m *MalgoCapturer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device != nil
}

func (m *MalgoCapturer) Start(ctx context.Context, onFrame func(AudioFrame)) error {
	if onFrame == nil {
		return fmt.Errorf("onFrame callback required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		log.Printf("recording: capture already active")
		return nil
	}
	if err := m.config.validate(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(m.config.Channels)
	deviceConfig.SampleRate = uint32(m.config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.config.BlockSize)

	frameCh := make(chan []float32, 32)
	done := make(chan struct{})

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			samples := audio.DecodeFloat32LE(input)
			select {
			case frameCh <- samples:
			default:
				// consumer is behind; dropping keeps the audio thread realtime
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("start capture device: %w", err)
	}

	m.mctx = mctx
	m.device = device
	m.frameCh = frameCh
	m.done = done

	go m.deliver(frameCh, done, onFrame)

	log.Printf("recording: miniaudio capture started (rate=%d, block=%d)", m.config.SampleRate, m.config.BlockSize)
	return nil
}

func (m *MalgoCapturer) deliver(frameCh <-chan []float32, done chan<- struct{}, onFrame func(AudioFrame)) {
	defer close(done)
	blocks := newBlocker(m.config.BlockSize)
	for samples := range frameCh {
		blocks.push(samples, onFrame)
	}
}

func (m *MalgoCapturer) Stop() error {
	m.mu.Lock()
	device, mctx, frameCh, done := m.device, m.mctx, m.frameCh, m.done
	m.device, m.mctx, m.frameCh, m.done = nil, nil, nil, nil
	m.mu.Unlock()

	if device == nil {
		return nil
	}

	// Uninit stops the device and guarantees no further Data callbacks.
	device.Uninit()
	close(frameCh)
	<-done

	if err := mctx.Uninit(); err != nil {
		log.Printf("recording: uninit audio context: %v", err)
	}
	mctx.Free()
	log.Printf("recording: miniaudio capture stopped")
	return nil
}
