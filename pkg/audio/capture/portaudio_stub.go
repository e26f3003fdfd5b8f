//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package capture

import (
	"errors"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

const portAudioEnabled = false

func openPortAudio(stream.Config) (stream.Capture, error) {
	return nil, stream.Wrap(stream.ErrDriver, "open portaudio", errors.New("PortAudio support not enabled (build with -tags portaudio)"))
}
