// ABOUTME: PCM fundamentals shared by capture backends
// ABOUTME: Defines Format and 16-bit little-endian sample helpers
// Package audio provides the sample-level helpers micstream needs to turn
// whatever a backend produces into the wire format: mono, 16-bit,
// little-endian linear PCM.
//
// Backends decode into int16 (or int32 for FLAC) and use these helpers to
// downmix and pack:
//
//	mono := audio.Downmix(stereo, 2)
//	n := audio.PutInt16LE(frame, mono)
package audio
