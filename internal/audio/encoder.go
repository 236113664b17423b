// Package audio converts captured float32 samples to the 16-bit PCM wire
// format and measures frame levels.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// SampleRate is the only rate the backend accepts.
	SampleRate = 16000
	// Channels is fixed to mono.
	Channels = 1
	// BytesPerSample for PCM16.
	BytesPerSample = 2
)

// EncodePCM16 converts float samples in [-1, 1] to 16-bit little-endian PCM.
// Negative samples scale by 32768 and positive ones by 32767 so that both
// extremes map onto the int16 range without overflow. An empty block yields nil.
func EncodePCM16(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(FloatToInt16(s)))
	}
	return out
}

// FloatToInt16 converts one sample. NaN is treated as silence.
func FloatToInt16(s float32) int16 {
	if s != s {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// DecodePCM16 is the inverse of EncodePCM16, used by tests and diagnostics.
func DecodePCM16(data []byte) []int16 {
	out := make([]int16, len(data)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return out
}

// DecodeFloat32LE reads raw 32-bit float little-endian samples as produced by
// capture backends running in f32 mode. Trailing partial samples are ignored.
func DecodeFloat32LE(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// RMS returns the root-mean-square energy of a block, used as the volume level.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
