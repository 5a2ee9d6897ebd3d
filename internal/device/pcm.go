package device

import (
	"encoding/binary"
	"math"

	"github.com/dkeye/voicelink/internal/audio"
)

// bytesToStereo decodes interleaved little-endian float32 stereo frames.
func bytesToStereo(b []byte) []audio.Stereo {
	n := len(b) / 8
	out := make([]audio.Stereo, n)
	for i := 0; i < n; i++ {
		out[i].L = math.Float32frombits(binary.LittleEndian.Uint32(b[8*i:]))
		out[i].R = math.Float32frombits(binary.LittleEndian.Uint32(b[8*i+4:]))
	}
	return out
}

// stereoToBytes encodes frames into dst as interleaved little-endian float32.
// Bytes beyond the encoded frames are zeroed.
func stereoToBytes(dst []byte, frames []audio.Stereo) {
	n := min(len(frames), len(dst)/8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[8*i:], math.Float32bits(frames[i].L))
		binary.LittleEndian.PutUint32(dst[8*i+4:], math.Float32bits(frames[i].R))
	}
	clear(dst[8*n:])
}
