package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// DefaultSampleRate is requested from capture devices. Devices may pick another
// rate; tracks report the rate actually in use.
const DefaultSampleRate = 48000

// DeviceInfo describes a capture device for `climoji devices`.
type DeviceInfo struct {
	Name      string
	IsDefault bool
}

// DeviceAcquirer opens real audio devices through miniaudio. Microphone
// capture works on every backend; system capture uses a WASAPI loopback device
// on Windows and a PulseAudio monitor source on Linux.
type DeviceAcquirer struct {
	sampleRate uint32
	log        zerolog.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewDeviceAcquirer creates an acquirer; the audio context is opened lazily.
func NewDeviceAcquirer(sampleRate int, log zerolog.Logger) *DeviceAcquirer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &DeviceAcquirer{
		sampleRate: uint32(sampleRate),
		log:        log.With().Str("component", "device").Logger(),
	}
}

func (a *DeviceAcquirer) context() (*malgo.AllocatedContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx != nil {
		return a.ctx, nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		a.log.Debug().Str("backend", "miniaudio").Msg(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	a.ctx = ctx
	return ctx, nil
}

// UserMedia opens the default capture device.
func (a *DeviceAcquirer) UserMedia(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelledByUser
	}
	mctx, err := a.context()
	if err != nil {
		return nil, err
	}
	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, classifyBackendError(fmt.Errorf("listing capture devices: %w", err))
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	track, err := a.open(mctx, malgo.Capture)
	if err != nil {
		return nil, err
	}
	return NewStream(track), nil
}

// DisplayMedia opens a capture of the system output.
func (a *DeviceAcquirer) DisplayMedia(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelledByUser
	}
	if runtime.GOOS != "windows" {
		return openMonitor(ctx, int(a.sampleRate), a.log)
	}
	mctx, err := a.context()
	if err != nil {
		return nil, err
	}
	track, err := a.open(mctx, malgo.Loopback)
	if err != nil {
		return nil, err
	}
	return NewStream(track), nil
}

func (a *DeviceAcquirer) open(mctx *malgo.AllocatedContext, kind malgo.DeviceType) (*AudioTrack, error) {
	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = a.sampleRate
	cfg.PeriodSizeInMilliseconds = 10

	var (
		device *malgo.Device
		track  *AudioTrack
	)
	// The release closure runs on Stop, never from inside a device callback.
	track = NewAudioTrack(int(a.sampleRate), func() {
		if device != nil {
			_ = device.Stop()
			device.Uninit()
		}
	})

	buf := make([]float32, 0, 1024)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, frames uint32) {
			buf = bytesToFloat32(buf[:0], in)
			track.Push(buf)
		},
		Stop: func() {
			track.End()
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		return nil, classifyBackendError(fmt.Errorf("initializing capture device: %w", err))
	}
	device = dev
	track.rate = int(dev.SampleRate())

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, classifyBackendError(fmt.Errorf("starting capture device: %w", err))
	}
	a.log.Debug().Int("sample_rate", track.rate).Msg("device opened")
	return track, nil
}

// Devices lists capture devices.
func (a *DeviceAcquirer) Devices() ([]DeviceInfo, error) {
	mctx, err := a.context()
	if err != nil {
		return nil, err
	}
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, DeviceInfo{Name: info.Name(), IsDefault: info.IsDefault != 0})
	}
	return out, nil
}

// Close releases the audio context.
func (a *DeviceAcquirer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return nil
	}
	err := a.ctx.Uninit()
	a.ctx.Free()
	a.ctx = nil
	return err
}

// bytesToFloat32 decodes little-endian f32 PCM into dst.
func bytesToFloat32(dst []float32, b []byte) []float32 {
	n := len(b) / 4
	for i := range n {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return dst
}

// int16ToFloat32 decodes little-endian s16 PCM into dst.
func int16ToFloat32(dst []float32, b []byte) []float32 {
	n := len(b) / 2
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(b[i*2:]))
		dst = append(dst, float32(s)/32768)
	}
	return dst
}
