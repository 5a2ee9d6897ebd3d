// Package device captures the microphone and plays mixed room audio through
// the default audio devices.
package device

import (
	"fmt"
	"sync"

	malgo "github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/audio"
)

// Microphone captures stereo float audio and hands it out once per tick.
type Microphone struct {
	dev  *malgo.Device
	ctx  *malgo.AllocatedContext
	once sync.Once

	mu      sync.Mutex
	pending []audio.Stereo
	limit   int
}

// StartMicrophone opens the default capture device at sampleRate. At most one
// second of audio is kept between reads.
func StartMicrophone(sampleRate int) (*Microphone, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("module", "device.mic").Msg(message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &Microphone{ctx: ctx, limit: sampleRate}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 2
	cfg.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			if len(pInput) == 0 {
				return
			}
			m.append(bytesToStereo(pInput))
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	m.dev = dev
	log.Info().Str("module", "device.mic").Int("sample_rate", sampleRate).Msg("microphone started")
	return m, nil
}

func (m *Microphone) append(frames []audio.Stereo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, frames...)
	if over := len(m.pending) - m.limit; over > 0 {
		m.pending = append(m.pending[:0], m.pending[over:]...)
	}
}

// Read returns everything captured since the previous call.
func (m *Microphone) Read() []audio.Stereo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	out := m.pending
	m.pending = nil
	return out
}

func (m *Microphone) Close() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		if m.dev != nil {
			_ = m.dev.Stop()
			m.dev.Uninit()
		}
		if m.ctx != nil {
			_ = m.ctx.Uninit()
			m.ctx.Free()
		}
	})
}
