// ABOUTME: Malgo-based microphone capture
// ABOUTME: Uses miniaudio via malgo and hands frames to the reader through a ring buffer
package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"github.com/gen2brain/malgo"
)

// ringFrames is the ring buffer capacity in frames.
const ringFrames = 8

// Malgo captures 16-bit mono PCM from the default input device.
type Malgo struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	ring     *RingBuffer

	mu      sync.Mutex
	started bool
	closed  bool
}

func openMalgo(cfg stream.Config) (stream.Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, stream.Wrap(stream.ErrDriver, "open malgo", fmt.Errorf("failed to initialize malgo context: %w", err))
	}

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil || len(devices) == 0 {
		freeContext(ctx)
		if err == nil {
			err = errors.New("no capture devices found")
		}
		return nil, stream.Wrap(stream.ErrDeviceUnavailable, "open malgo", err)
	}

	m := &Malgo{
		malgoCtx: ctx,
		ring:     NewRingBuffer(cfg.FrameBufferBytes() * ringFrames),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FrameSize)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.ring.Write(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(ctx)
		return nil, stream.Wrap(stream.ErrDeviceUnavailable, "open malgo", fmt.Errorf("failed to initialize capture device: %w", err))
	}
	m.device = device

	log.Printf("Capture device ready: %s (malgo)", devices[0].Name())
	return m, nil
}

// Start begins delivering audio into the ring buffer.
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return stream.Wrap(stream.ErrDriver, "start malgo", errClosed)
	}
	if m.started {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return stream.Wrap(stream.ErrDriver, "start malgo", fmt.Errorf("failed to start device: %w", err))
	}
	m.started = true
	return nil
}

// ReadFrame blocks until len(buf) bytes have been captured.
func (m *Malgo) ReadFrame(buf []byte) (int, error) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return 0, stream.Wrap(stream.ErrDriver, "read malgo", errNotStarted)
	}

	n, err := m.ring.ReadFull(buf)
	if err != nil {
		return n, stream.Wrap(stream.ErrDriver, "read malgo", err)
	}
	return n, nil
}

// Close stops the device and releases the context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.ring.Close()

	if m.device != nil {
		if m.started {
			if err := m.device.Stop(); err != nil {
				log.Printf("Warning: device stop error: %v", err)
			}
		}
		m.device.Uninit()
		m.device = nil
	}
	freeContext(m.malgoCtx)
	m.malgoCtx = nil
	return nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	if err := ctx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	ctx.Free()
}

var _ stream.Capture = (*Malgo)(nil)
