// ABOUTME: Capture source backends for micstream
// ABOUTME: PortAudio, miniaudio (malgo), test tone and file-backed sources
// Package capture provides stream.Capture implementations.
//
// Hardware backends:
//   - portaudio: blocking reads through PortAudio (build with -tags portaudio)
//   - malgo: miniaudio callback capture bridged through a ring buffer
//
// Synthetic backends, paced in real time so they behave like a microphone:
//   - tone: a sine wave
//   - file: an MP3 or FLAC file played in a loop (its sample rate must match)
//
// All backends deliver mono 16-bit little-endian PCM.
package capture
