package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicelink/internal/audio"
)

func frames(n int, v float32) []audio.Stereo {
	out := make([]audio.Stereo, n)
	for i := range out {
		out[i] = audio.Stereo{L: v, R: -v}
	}
	return out
}

func TestMixerSumsParticipants(t *testing.T) {
	m := NewMixer(48000, 100)
	m.Push("alice", frames(4, 0.25))
	m.Push("bob", frames(2, 0.5))

	out := make([]audio.Stereo, 4)
	m.Mix(out)

	assert.Equal(t, []audio.Stereo{
		{L: 0.75, R: -0.75},
		{L: 0.75, R: -0.75},
		{L: 0.25, R: -0.25},
		{L: 0.25, R: -0.25},
	}, out)
	assert.Zero(t, m.Buffered("alice"))
	assert.Zero(t, m.Buffered("bob"))
}

func TestMixerClampsAndFillsSilence(t *testing.T) {
	m := NewMixer(48000, 100)
	m.Push("alice", frames(1, 0.8))
	m.Push("bob", frames(1, 0.8))

	out := frames(3, 0.3)
	m.Mix(out)
	assert.Equal(t, []audio.Stereo{{L: 1, R: -1}, {}, {}}, out)
}

func TestMixerKeepsRemainder(t *testing.T) {
	m := NewMixer(48000, 100)
	m.Push("alice", frames(10, 0.1))

	m.Mix(make([]audio.Stereo, 4))
	assert.Equal(t, 6, m.Buffered("alice"))
}

func TestMixerDropsOldestBeyondCapacity(t *testing.T) {
	m := NewMixer(1000, 10) // 10 frames
	for i := 0; i < 15; i++ {
		m.Push("alice", []audio.Stereo{{L: float32(i) / 100}})
	}
	require.Equal(t, 10, m.Buffered("alice"))

	out := make([]audio.Stereo, 1)
	m.Mix(out)
	assert.InDelta(t, 0.05, out[0].L, 1e-6)
}

func TestMixerRemove(t *testing.T) {
	m := NewMixer(48000, 100)
	m.Push("alice", frames(4, 0.5))
	m.Remove("alice")

	out := make([]audio.Stereo, 4)
	m.Mix(out)
	assert.Equal(t, make([]audio.Stereo, 4), out)
}

func TestMixerVolume(t *testing.T) {
	m := NewMixer(48000, 100)
	m.SetVolumeDB("alice", -6)
	m.Push("alice", frames(1, 0.5))
	m.Push("bob", frames(1, 0.5))

	out := make([]audio.Stereo, 1)
	m.Mix(out)
	assert.InDelta(t, 0.5+0.5*0.501187, out[0].L, 1e-5)

	m.SetVolumeDB("alice", 0)
	m.Push("alice", frames(1, 0.5))
	m.Mix(out)
	assert.InDelta(t, 0.5, out[0].L, 1e-6)
}

func TestStereoBytesRoundTrip(t *testing.T) {
	in := []audio.Stereo{{L: 0.5, R: -0.25}, {L: -1, R: 1}}
	buf := make([]byte, 8*3)
	for i := range buf {
		buf[i] = 0xff
	}
	stereoToBytes(buf, in)

	assert.Equal(t, in, bytesToStereo(buf[:16]))
	assert.Equal(t, make([]byte, 8), buf[16:])
	assert.Empty(t, bytesToStereo(buf[:7]))
}
