//go:build linux || freebsd

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/rs/zerolog"
)

// monitorPoll is how often a monitor stream is checked for server-side
// termination.
const monitorPoll = 250 * time.Millisecond

// monitorWriter implements pulse.Writer and forwards s16 PCM to a track.
type monitorWriter struct {
	track *AudioTrack

	mu  sync.Mutex
	buf []float32
}

func (w *monitorWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	w.buf = int16ToFloat32(w.buf[:0], data)
	w.track.Push(w.buf)
	w.mu.Unlock()
	return len(data), nil
}

func (w *monitorWriter) Format() byte { return proto.FormatInt16LE }

// openMonitor records the monitor source of the default sink. A session with
// no default sink has nothing to capture and yields a stream without audio.
const hasPulseMonitor = true

func openMonitor(ctx context.Context, sampleRate int, log zerolog.Logger) (*Stream, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("climoji"))
	if err != nil {
		return nil, fmt.Errorf("%w: pulse connect: %v", ErrDeviceNotFound, err)
	}
	if err := ctx.Err(); err != nil {
		client.Close()
		return nil, ErrCancelledByUser
	}

	sink, err := client.DefaultSink()
	if err != nil || sink == nil {
		client.Close()
		log.Debug().Err(err).Msg("no default sink")
		return NewStream(), nil
	}

	done := make(chan struct{})
	var (
		stream   *pulse.RecordStream
		stopOnce sync.Once
	)
	track := NewAudioTrack(sampleRate, func() {
		stopOnce.Do(func() {
			close(done)
			if stream != nil {
				stream.Stop()
				stream.Close()
			}
			client.Close()
		})
	})

	w := &monitorWriter{track: track}
	stream, err = client.NewRecord(
		w,
		pulse.RecordMonitor(sink),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(uint32(sampleRate/100*2)),
	)
	if err != nil {
		client.Close()
		return nil, classifyBackendError(fmt.Errorf("pulse record: %w", err))
	}
	stream.Start()
	log.Debug().Str("sink", sink.Name()).Int("sample_rate", sampleRate).Msg("monitor opened")

	go func() {
		ticker := time.NewTicker(monitorPoll)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !stream.Running() {
					log.Info().Err(stream.Error()).Msg("monitor stream ended")
					track.End()
					return
				}
			}
		}
	}()

	return NewStream(track), nil
}
