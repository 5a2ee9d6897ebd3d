// Package codec wraps libopus for the 10ms mono voice frames the session
// exchanges with the room.
package codec

import (
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

const (
	// MaxPacketSize bounds a single encoded Opus packet.
	MaxPacketSize = 1500
	// maxFrameMs is the longest Opus frame a peer may send.
	maxFrameMs = 120
)

var ErrUnsupportedSampleRate = errors.New("unsupported opus sample rate")

// SupportedSampleRate reports whether libopus can run at rate.
func SupportedSampleRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// Encoder turns mono PCM16 frames into Opus packets.
type Encoder struct {
	enc  *opus.Encoder
	buf  []byte
	rate int
}

func NewEncoder(sampleRate int) (*Encoder, error) {
	if !SupportedSampleRate(sampleRate) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSampleRate, sampleRate)
	}
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &Encoder{enc: enc, buf: make([]byte, MaxPacketSize), rate: sampleRate}, nil
}

func (e *Encoder) SampleRate() int { return e.rate }

// Encode returns a freshly allocated packet for one frame.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

// Decoder turns Opus packets back into mono PCM16.
type Decoder struct {
	dec *opus.Decoder
	pcm []int16
}

func NewDecoder(sampleRate int) (*Decoder, error) {
	if !SupportedSampleRate(sampleRate) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSampleRate, sampleRate)
	}
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &Decoder{dec: dec, pcm: make([]int16, sampleRate*maxFrameMs/1000)}, nil
}

// Decode returns a freshly allocated frame of decoded samples.
func (d *Decoder) Decode(packet []byte) ([]int16, error) {
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	out := make([]int16, n)
	copy(out, d.pcm[:n])
	return out, nil
}
