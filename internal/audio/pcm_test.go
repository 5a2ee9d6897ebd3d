package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyInputs(t *testing.T) {
	assert.Empty(t, DownmixToMono(nil))
	assert.Empty(t, UpmixToStereo(nil))
	assert.Empty(t, FloatToPCM16(nil))
	assert.Empty(t, PCM16ToFloat(nil))
	assert.Empty(t, PCM16ToStereo(nil))
}

func TestDownmixUpmixIdenticalChannels(t *testing.T) {
	in := []Stereo{{0.5, 0.5}, {-0.25, -0.25}, {0, 0}, {1, 1}}

	got := UpmixToStereo(DownmixToMono(in))

	assert.Equal(t, in, got)
}

func TestDownmixIsLossyForDistinctChannels(t *testing.T) {
	in := []Stereo{{1, 0}, {-0.5, 0.5}}

	mono := DownmixToMono(in)
	require.Equal(t, []float32{0.5, 0}, mono)

	got := UpmixToStereo(mono)
	assert.Equal(t, []Stereo{{0.5, 0.5}, {0, 0}}, got)
	assert.NotEqual(t, in, got)
}

func TestFloatToPCM16ClampsAndTruncates(t *testing.T) {
	in := []float32{0, 1, -1, 1.5, -7, 0.5, -0.5, 0.99999, float32(math.NaN()), float32(math.Inf(1))}

	got := FloatToPCM16(in)

	assert.Equal(t, []int16{0, 32767, -32767, 32767, -32767, 16383, -16383, 32766, 0, 32767}, got)
}

func TestAppendFloatToPCM16(t *testing.T) {
	dst := []int16{7}
	dst = AppendFloatToPCM16(dst, []float32{1, -2})
	assert.Equal(t, []int16{7, 32767, -32767}, dst)
}

func TestPCM16ToFloatScale(t *testing.T) {
	got := PCM16ToFloat([]int16{0, -32768, 16384, 32767})
	assert.Equal(t, []float32{0, -1, 0.5, 32767.0 / 32768}, got)
}

// Scaling down by 32768 after scaling up by 32767 with truncation loses at
// most (1+|f|)/32768 per sample.
func TestPCMRoundTripQuantizationBound(t *testing.T) {
	for i := -1000; i <= 1000; i++ {
		f := float32(i) / 1000
		back := PCM16ToFloat(FloatToPCM16([]float32{f}))[0]
		bound := (1 + math.Abs(float64(f))) / 32768
		assert.LessOrEqual(t, math.Abs(float64(back-f)), bound, "sample %v", f)
	}
}

func TestPCMRoundTripOutOfRangeIsClamped(t *testing.T) {
	pcm := FloatToPCM16([]float32{3, -3})
	assert.Equal(t, []int16{32767, -32767}, pcm)

	back := PCM16ToFloat(pcm)
	assert.InDelta(t, 1, back[0], 1.0/32767)
	assert.InDelta(t, -1, back[1], 1.0/32767)
}

func TestPCM16ToStereoDuplicatesChannels(t *testing.T) {
	got := PCM16ToStereo([]int16{16384, -16384})
	assert.Equal(t, []Stereo{{0.5, 0.5}, {-0.5, -0.5}}, got)
}
