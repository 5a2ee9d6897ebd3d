package device

import (
	"fmt"
	"sync"

	malgo "github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/audio"
)

// Speaker plays the mixer's output on the default playback device.
type Speaker struct {
	dev  *malgo.Device
	ctx  *malgo.AllocatedContext
	once sync.Once
}

// StartSpeaker opens a stereo float playback device at sampleRate that pulls
// from mixer. onStop runs if the device stops on its own.
func StartSpeaker(sampleRate int, mixer *Mixer, onStop func()) (*Speaker, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("module", "device.speaker").Msg(message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 2
	cfg.SampleRate = uint32(sampleRate)

	var scratch []audio.Stereo
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			if cap(scratch) < int(frameCount) {
				scratch = make([]audio.Stereo, frameCount)
			}
			frames := scratch[:frameCount]
			mixer.Mix(frames)
			stereoToBytes(pOutput, frames)
		},
		Stop: func() {
			if onStop != nil {
				onStop()
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	log.Info().Str("module", "device.speaker").Int("sample_rate", sampleRate).Msg("speaker started")
	return &Speaker{dev: dev, ctx: ctx}, nil
}

// Close stops playback and releases device resources.
func (s *Speaker) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.dev != nil {
			_ = s.dev.Stop()
			s.dev.Uninit()
		}
		if s.ctx != nil {
			_ = s.ctx.Uninit()
			s.ctx.Free()
		}
	})
}
