package mix

import (
	"math"
	"time"
)

// Track is an in-memory audio clip: interleaved samples in the range
// [-1, 1], a channel count and a sample rate. All mutating operations
// work in place.
type Track struct {
	samples    []float64
	channels   int
	sampleRate int
}

func NewTrack(samples []float64, channels int, sampleRate int) *Track {
	return &Track{
		samples:    samples,
		channels:   channels,
		sampleRate: sampleRate,
	}
}

// Silence produces a track of zero samples at the given shape.
func Silence(frames int, channels int, sampleRate int) *Track {
	return NewTrack(make([]float64, frames*channels), channels, sampleRate)
}

func (t *Track) Channels() int   { return t.channels }
func (t *Track) SampleRate() int { return t.sampleRate }
func (t *Track) Samples() []float64 {
	return t.samples
}

func (t *Track) Frames() int {
	if t.channels == 0 {
		return 0
	}
	return len(t.samples) / t.channels
}

func (t *Track) Duration() time.Duration {
	if t.sampleRate == 0 {
		return 0
	}
	seconds := float64(t.Frames()) / float64(t.sampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// DBFS is the RMS level relative to digital full scale, in decibels.
// A silent track measures negative infinity.
func (t *Track) DBFS() float64 {
	if len(t.samples) == 0 {
		return math.Inf(-1)
	}

	var sumSquares float64
	for _, s := range t.samples {
		sumSquares += s * s
	}

	rms := math.Sqrt(sumSquares / float64(len(t.samples)))
	if rms == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(rms)
}

// ApplyGain scales all samples by the given decibel amount.
func (t *Track) ApplyGain(db float64) {
	factor := math.Pow(10, db/20)
	for i := range t.samples {
		t.samples[i] *= factor
	}
}

func (t *Track) Clone() *Track {
	samples := make([]float64, len(t.samples))
	copy(samples, t.samples)
	return NewTrack(samples, t.channels, t.sampleRate)
}

// TrimToFrames truncates the track's tail so it is exactly n frames.
// A no-op when the track is already at or below n frames.
func (t *Track) TrimToFrames(n int) {
	if t.Frames() <= n {
		return
	}
	t.samples = t.samples[:n*t.channels]
}

// PadToFrames extends the track with trailing silence until it is
// exactly n frames.
func (t *Track) PadToFrames(n int) {
	shortfall := n - t.Frames()
	if shortfall <= 0 {
		return
	}
	t.samples = append(t.samples, make([]float64, shortfall*t.channels)...)
}

// LoopToFrames tiles the track's content whole times until it reaches
// or exceeds n frames, then truncates to exactly n.
func (t *Track) LoopToFrames(n int) {
	if t.Frames() == 0 || t.Frames() >= n {
		t.TrimToFrames(n)
		return
	}

	original := make([]float64, len(t.samples))
	copy(original, t.samples)

	for t.Frames() < n {
		t.samples = append(t.samples, original...)
	}

	t.TrimToFrames(n)
}

// FadeIn ramps the gain linearly from zero over the given duration.
func (t *Track) FadeIn(d time.Duration) {
	fadeFrames := t.framesIn(d)
	for frame := 0; frame < fadeFrames && frame < t.Frames(); frame++ {
		gain := float64(frame) / float64(fadeFrames)
		for ch := 0; ch < t.channels; ch++ {
			t.samples[frame*t.channels+ch] *= gain
		}
	}
}

// FadeOut ramps the gain linearly to zero over the final duration.
func (t *Track) FadeOut(d time.Duration) {
	fadeFrames := t.framesIn(d)
	totalFrames := t.Frames()
	for i := 0; i < fadeFrames && i < totalFrames; i++ {
		frame := totalFrames - 1 - i
		gain := float64(i) / float64(fadeFrames)
		for ch := 0; ch < t.channels; ch++ {
			t.samples[frame*t.channels+ch] *= gain
		}
	}
}

func (t *Track) framesIn(d time.Duration) int {
	return int(d.Seconds() * float64(t.sampleRate))
}

// upmixed returns the track's samples widened to the given channel
// count by duplicating channels. Only mono to n is supported.
func (t *Track) upmixed(channels int) []float64 {
	if t.channels == channels {
		return t.samples
	}

	frames := t.Frames()
	widened := make([]float64, frames*channels)
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			widened[frame*channels+ch] = t.samples[frame*t.channels]
		}
	}
	return widened
}
