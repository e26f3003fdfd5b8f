// ABOUTME: Audio type definitions
// ABOUTME: Defines Format and 16-bit PCM packing, scaling and downmix helpers
package audio

import (
	"encoding/binary"
	"fmt"
)

// Format describes a linear PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// String renders the format as e.g. "16000Hz mono 16-bit".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s %d-bit", f.SampleRate, ch, f.BitDepth)
}

// BytesPerSecond returns the data rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// ScaleToInt16 converts a sample of the given bit depth to 16 bits.
func ScaleToInt16(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	case bitDepth < 16:
		return int16(sample << (16 - bitDepth))
	default:
		return int16(sample)
	}
}

// Downmix averages interleaved frames of channels samples into mono. Mono
// input is returned unchanged.
func Downmix(interleaved []int16, channels int) []int16 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(interleaved[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// PutInt16LE packs samples into dst as little-endian 16-bit words and returns
// the number of bytes written. It stops when dst is full.
func PutInt16LE(dst []byte, samples []int16) int {
	n := 0
	for _, s := range samples {
		if n+2 > len(dst) {
			break
		}
		binary.LittleEndian.PutUint16(dst[n:], uint16(s))
		n += 2
	}
	return n
}

// Int16LE decodes little-endian 16-bit words from src.
func Int16LE(src []byte) []int16 {
	samples := make([]int16, len(src)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return samples
}
