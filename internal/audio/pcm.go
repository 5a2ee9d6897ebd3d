package audio

import "math"

const (
	pcm16Scale    = 32767
	pcm16InvScale = 1.0 / 32768
)

// Stereo is one interleaved stereo sample as the host delivers and consumes it.
type Stereo struct {
	L, R float32
}

// DownmixToMono averages the two channels of every sample.
func DownmixToMono(in []Stereo) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = (s.L + s.R) / 2
	}
	return out
}

// UpmixToStereo copies each mono sample to both channels.
func UpmixToStereo(in []float32) []Stereo {
	out := make([]Stereo, len(in))
	for i, s := range in {
		out[i] = Stereo{L: s, R: s}
	}
	return out
}

// FloatToPCM16 clamps to [-1, 1], scales by 32767 and truncates toward zero.
// NaN is treated as silence.
func FloatToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = floatToPCM16(s)
	}
	return out
}

// AppendFloatToPCM16 is FloatToPCM16 appending into dst.
func AppendFloatToPCM16(dst []int16, in []float32) []int16 {
	for _, s := range in {
		dst = append(dst, floatToPCM16(s))
	}
	return dst
}

func floatToPCM16(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return int16(s * pcm16Scale)
}

// PCM16ToFloat scales every sample by 1/32768.
func PCM16ToFloat(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) * pcm16InvScale
	}
	return out
}

// PCM16ToStereo decodes mono PCM straight into host stereo samples.
func PCM16ToStereo(in []int16) []Stereo {
	out := make([]Stereo, len(in))
	for i, s := range in {
		f := float32(s) * pcm16InvScale
		out[i] = Stereo{L: f, R: f}
	}
	return out
}
