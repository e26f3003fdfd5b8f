// ABOUTME: File-backed capture source for MP3 and FLAC
// ABOUTME: Decodes, downmixes to mono and paces output like a live microphone
package capture

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/micstream/pkg/audio"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// mp3ChunkBytes is how much decoded stereo PCM is pulled per mp3 read.
const mp3ChunkBytes = 4096

// sampleDecoder yields mono 16-bit chunks and io.EOF at the end of the file.
type sampleDecoder interface {
	decode() ([]int16, error)
}

type decoderFactory func(r io.Reader) (sampleDecoder, audio.Format, error)

// File replays an audio file as if it were being captured. The file loops
// at EOF. Its sample rate must match the stream configuration.
type File struct {
	path       string
	file       *os.File
	newDecoder decoderFactory
	decoder    sampleDecoder
	pacer      *pacer

	mu      sync.Mutex
	pending []int16

	started atomic.Bool
	closed  atomic.Bool
}

// OpenFile opens an .mp3 or .flac file for capture at cfg's rate.
func OpenFile(cfg stream.Config, path string) (*File, error) {
	if path == "" {
		return nil, stream.Wrap(stream.ErrConfig, "open file", errors.New("file backend requires an input path"))
	}

	var factory decoderFactory
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		factory = newMP3Decoder
	case ".flac":
		factory = newFLACDecoder
	default:
		return nil, stream.Wrap(stream.ErrConfig, "open file", fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, stream.Wrap(stream.ErrDeviceUnavailable, "open file", err)
	}

	dec, format, err := factory(f)
	if err != nil {
		f.Close()
		return nil, stream.Wrap(stream.ErrDriver, "open file", err)
	}
	if format.SampleRate != cfg.SampleRate {
		f.Close()
		return nil, stream.Wrap(stream.ErrDriver, "open file",
			fmt.Errorf("%s is %dHz, stream expects %dHz", filepath.Base(path), format.SampleRate, cfg.SampleRate))
	}

	log.Printf("Loaded %s (%s)", filepath.Base(path), format)

	return &File{
		path:       path,
		file:       f,
		newDecoder: factory,
		decoder:    dec,
		pacer:      newPacer(cfg.FrameDuration()),
	}, nil
}

// Start arms the source.
func (s *File) Start() error {
	if s.closed.Load() {
		return stream.Wrap(stream.ErrDriver, "start file", errClosed)
	}
	s.started.Store(true)
	return nil
}

// ReadFrame waits one frame period and fills buf with decoded audio.
func (s *File) ReadFrame(buf []byte) (int, error) {
	if !s.started.Load() {
		return 0, stream.Wrap(stream.ErrDriver, "read file", errNotStarted)
	}
	if err := s.pacer.wait(); err != nil {
		return 0, stream.Wrap(stream.ErrDriver, "read file", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	rewound := false
	for n < len(buf)-1 {
		if len(s.pending) == 0 {
			samples, err := s.decoder.decode()
			if errors.Is(err, io.EOF) {
				// A file that yields nothing after a rewind would spin forever.
				if rewound && n == 0 {
					return 0, stream.Wrap(stream.ErrDriver, "read file", errors.New("file contains no audio"))
				}
				if err := s.rewind(); err != nil {
					return n, stream.Wrap(stream.ErrDriver, "read file", err)
				}
				rewound = true
				continue
			}
			if err != nil {
				return n, stream.Wrap(stream.ErrDriver, "read file", err)
			}
			s.pending = samples
			continue
		}
		k := audio.PutInt16LE(buf[n:], s.pending)
		s.pending = s.pending[k/2:]
		n += k
	}
	return n, nil
}

func (s *File) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	dec, _, err := s.newDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new decoder: %w", err)
	}
	s.decoder = dec
	return nil
}

// Close releases the file and unblocks a pending read.
func (s *File) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pacer.close()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

var _ stream.Capture = (*File)(nil)

type mp3Decoder struct {
	dec *mp3.Decoder
	buf []byte
}

func newMP3Decoder(r io.Reader) (sampleDecoder, audio.Format, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to decode MP3: %w", err)
	}
	// go-mp3 always produces 16-bit stereo.
	format := audio.Format{SampleRate: dec.SampleRate(), Channels: 2, BitDepth: 16}
	return &mp3Decoder{dec: dec, buf: make([]byte, mp3ChunkBytes)}, format, nil
}

func (d *mp3Decoder) decode() ([]int16, error) {
	n, err := d.dec.Read(d.buf)
	n -= n % 4
	if n > 0 {
		return audio.Downmix(audio.Int16LE(d.buf[:n]), 2), nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, err
}

type flacDecoder struct {
	stream   *flac.Stream
	channels int
	bitDepth int
}

func newFLACDecoder(r io.Reader) (sampleDecoder, audio.Format, error) {
	s, err := flac.New(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	format := audio.Format{
		SampleRate: int(s.Info.SampleRate),
		Channels:   int(s.Info.NChannels),
		BitDepth:   int(s.Info.BitsPerSample),
	}
	return &flacDecoder{stream: s, channels: format.Channels, bitDepth: format.BitDepth}, format, nil
}

func (d *flacDecoder) decode() ([]int16, error) {
	frame, err := d.stream.ParseNext()
	if err != nil {
		return nil, err
	}

	mono := make([]int16, frame.BlockSize)
	for i := range mono {
		var sum int32
		for ch := 0; ch < d.channels; ch++ {
			sum += int32(audio.ScaleToInt16(frame.Subframes[ch].Samples[i], d.bitDepth))
		}
		mono[i] = int16(sum / int32(d.channels))
	}
	return mono, nil
}
