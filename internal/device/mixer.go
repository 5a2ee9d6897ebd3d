package device

import (
	"math"
	"sync"

	"github.com/dkeye/voicelink/internal/audio"
	"github.com/dkeye/voicelink/internal/domain"
)

// Mixer keeps a short jitter buffer per remote participant and sums them
// for playback. Each buffer holds at most capacity frames; the oldest audio
// is dropped when a participant gets ahead of the speaker.
type Mixer struct {
	mu       sync.Mutex
	capacity int
	buffers  map[domain.ParticipantID][]audio.Stereo
	gains    map[domain.ParticipantID]float32
}

// NewMixer sizes each participant buffer to bufferMs of audio at sampleRate.
func NewMixer(sampleRate, bufferMs int) *Mixer {
	return &Mixer{
		capacity: sampleRate * bufferMs / 1000,
		buffers:  make(map[domain.ParticipantID][]audio.Stereo),
		gains:    make(map[domain.ParticipantID]float32),
	}
}

// SetVolumeDB sets a participant's playback gain in decibels. 0 restores unity.
func (m *Mixer) SetVolumeDB(id domain.ParticipantID, db float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if db == 0 {
		delete(m.gains, id)
		return
	}
	m.gains[id] = float32(math.Pow(10, db/20))
}

func (m *Mixer) Push(id domain.ParticipantID, samples []audio.Stereo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := append(m.buffers[id], samples...)
	if over := len(buf) - m.capacity; over > 0 {
		buf = append(buf[:0], buf[over:]...)
	}
	m.buffers[id] = buf
}

// Remove forgets a participant and its buffered audio.
func (m *Mixer) Remove(id domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, id)
	delete(m.gains, id)
}

func (m *Mixer) Buffered(id domain.ParticipantID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers[id])
}

// Mix fills out with the clamped sum of every participant's next samples.
// Participants that run dry contribute silence.
func (m *Mixer) Mix(out []audio.Stereo) {
	clear(out)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, buf := range m.buffers {
		gain, ok := m.gains[id]
		if !ok {
			gain = 1
		}
		n := min(len(out), len(buf))
		for i := 0; i < n; i++ {
			out[i].L += buf[i].L * gain
			out[i].R += buf[i].R * gain
		}
		m.buffers[id] = append(buf[:0], buf[n:]...)
	}
	for i := range out {
		out[i].L = clamp(out[i].L)
		out[i].R = clamp(out[i].R)
	}
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
