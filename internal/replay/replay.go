// Package replay serves an audio file as a capture source, so the avatar can
// lip-sync to a recording. The file is played back through the speakers while
// its samples are pushed to the capture track.
package replay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/olivier-w/climoji/internal/capture"
)

// chunk is the amount of audio pushed per tick when playback is muted.
const chunk = 10 * time.Millisecond

// Acquirer opens a file for both microphone and system requests.
type Acquirer struct {
	path     string
	playback bool
	clock    clock.Clock
	log      zerolog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithPlayback toggles audible playback. Muted replays are paced by the clock.
func WithPlayback(on bool) Option {
	return func(a *Acquirer) { a.playback = on }
}

func WithClock(c clock.Clock) Option {
	return func(a *Acquirer) { a.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Acquirer) { a.log = l }
}

// New creates an acquirer for path.
func New(path string, opts ...Option) *Acquirer {
	a := &Acquirer{path: path, playback: true, clock: clock.New(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With().Str("component", "replay").Logger()
	return a
}

func (a *Acquirer) UserMedia(ctx context.Context) (*capture.Stream, error) {
	return a.open(ctx)
}

func (a *Acquirer) DisplayMedia(ctx context.Context) (*capture.Stream, error) {
	return a.open(ctx)
}

func (a *Acquirer) open(ctx context.Context) (*capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.ErrCancelledByUser
	}
	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", capture.ErrDeviceNotFound, a.path)
		}
		return nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if dec.ChannelCount() <= 0 || dec.SampleRate() <= 0 {
		f.Close()
		return nil, fmt.Errorf("invalid audio format in %s", a.path)
	}
	if a.playback {
		if norm, err := newNormalizer(dec, playbackRate); err == nil {
			dec = norm
		} else {
			a.log.Warn().Err(err).Msg("cannot resample for playback")
		}
	}

	p := &pump{dec: dec, channels: dec.ChannelCount(), done: make(chan struct{})}
	p.track = capture.NewAudioTrack(dec.SampleRate(), func() {
		p.stop()
		f.Close()
	})

	if a.playback {
		player, err := a.play(p)
		if err == nil {
			p.mu.Lock()
			p.player = player
			p.mu.Unlock()
			a.log.Info().Str("file", a.path).Int("sample_rate", dec.SampleRate()).Msg("replay started")
			return capture.NewStream(p.track), nil
		}
		a.log.Warn().Err(err).Msg("playback unavailable, replaying muted")
	}

	ticker := a.clock.Ticker(chunk)
	go p.pace(ticker, dec.SampleRate()*int(chunk)/int(time.Second))
	a.log.Info().Str("file", a.path).Bool("muted", true).Msg("replay started")
	return capture.NewStream(p.track), nil
}

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

// play hands the pump to oto. The context is process-wide, 48 kHz stereo.
func (a *Acquirer) play(p *pump) (*oto.Player, error) {
	if p.track.SampleRate() != playbackRate || p.channels != playbackChannels {
		return nil, fmt.Errorf("audio output is fixed at %d Hz stereo", playbackRate)
	}
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   playbackRate,
			ChannelCount: playbackChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if otoInitErr == nil {
			<-ready
		}
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	player := otoCtx.NewPlayer(p)
	player.Play()
	return player, nil
}

// pump reads decoded PCM and mirrors every read onto the track as mono floats.
type pump struct {
	dec      pcmDecoder
	track    *capture.AudioTrack
	channels int
	player   *oto.Player

	mu      sync.Mutex
	mono    []float32
	stopped bool
	done    chan struct{}
}

// Read is called by oto; the player's pull rate paces the track.
func (p *pump) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, io.EOF
	}
	p.mu.Unlock()

	frame := p.channels * 2
	n, err := p.dec.Read(b[:len(b)/frame*frame])
	if n > 0 {
		p.mono = downmix(p.mono[:0], b[:n], p.channels)
		p.track.Push(p.mono)
	}
	if err != nil {
		p.track.End()
		if !errors.Is(err, io.EOF) {
			return n, err
		}
		return n, io.EOF
	}
	return n, nil
}

func (p *pump) pace(ticker *clock.Ticker, frames int) {
	defer ticker.Stop()
	if frames <= 0 {
		frames = 1
	}
	buf := make([]byte, frames*p.channels*2)
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
		if _, err := io.ReadFull(p, buf); err != nil {
			return
		}
	}
}

func (p *pump) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.done)
	if p.player != nil {
		p.player.Pause()
	}
}

// downmix averages interleaved s16 frames into mono floats.
func downmix(dst []float32, pcm []byte, channels int) []float32 {
	frame := channels * 2
	for off := 0; off+frame <= len(pcm); off += frame {
		var sum float32
		for ch := range channels {
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[off+ch*2:])))
		}
		dst = append(dst, sum/float32(channels)/32768)
	}
	return dst
}
