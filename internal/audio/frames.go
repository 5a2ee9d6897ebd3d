package audio

// FramesPerSecond is the number of transport frames per second (10ms each).
const FramesPerSecond = 100

// SamplesPer10ms is the mono frame size at the given sample rate.
func SamplesPer10ms(sampleRate int) int {
	return sampleRate / FramesPerSecond
}

// FrameAccumulator collects PCM samples and hands them out in fixed-size
// frames. Samples short of a full frame stay buffered for the next Push.
// It is not safe for concurrent use.
type FrameAccumulator struct {
	frameSize int
	buf       []int16
}

func NewFrameAccumulator(frameSize int) *FrameAccumulator {
	if frameSize <= 0 {
		panic("audio: frame size must be positive")
	}
	return &FrameAccumulator{
		frameSize: frameSize,
		buf:       make([]int16, 0, frameSize*2),
	}
}

// FrameSize reports the number of samples per emitted frame.
func (a *FrameAccumulator) FrameSize() int { return a.frameSize }

// Push appends samples and returns every complete frame now available, oldest
// first. Returned frames do not alias the accumulator's buffer.
func (a *FrameAccumulator) Push(samples []int16) [][]int16 {
	a.buf = append(a.buf, samples...)
	n := len(a.buf) / a.frameSize
	if n == 0 {
		return nil
	}
	frames := make([][]int16, n)
	for i := range frames {
		frame := make([]int16, a.frameSize)
		copy(frame, a.buf[i*a.frameSize:(i+1)*a.frameSize])
		frames[i] = frame
	}
	rest := copy(a.buf, a.buf[n*a.frameSize:])
	a.buf = a.buf[:rest]
	return frames
}

// Pending reports how many samples wait for the next frame.
func (a *FrameAccumulator) Pending() int { return len(a.buf) }

// Reset drops buffered samples.
func (a *FrameAccumulator) Reset() { a.buf = a.buf[:0] }
