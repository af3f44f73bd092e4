package gifsync

import (
	"image"
	"math"
	"sort"
)

// Frame is one decoded still of the animation. Frames are never modified
// after decode, so a *Frame may be handed to other goroutines for drawing.
type Frame struct {
	Image    *image.NRGBA
	Duration float64 // seconds, in [minFrameSeconds, maxFrameSeconds]
	End      float64 // cumulative end time of this frame in seconds
}

// Sequence is a decoded animation.
type Sequence struct {
	Frames []Frame
	Total  float64 // sum of all frame durations in seconds
	Width  int
	Height int
}

// Len returns the number of frames, zero for a nil sequence.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Frames)
}

func (s *Sequence) valid() bool {
	return s != nil && len(s.Frames) > 0 && s.Total > 0
}

// IndexAt returns the index of the frame shown at the given normalized phase,
// or -1 when the sequence has nothing to show.
func (s *Sequence) IndexAt(phase float64) int {
	if !s.valid() {
		return -1
	}
	if math.IsNaN(phase) {
		phase = 0
	}
	t := math.Min(1, math.Max(0, phase)) * s.Total

	// first frame whose end time reaches t
	i := sort.Search(len(s.Frames), func(i int) bool {
		return t <= s.Frames[i].End
	})
	if i == len(s.Frames) {
		return len(s.Frames) - 1
	}
	return i
}

// FrameAt returns the frame shown at the given normalized phase, or nil when
// the sequence is empty. The frame belongs to s and is replaced with it.
func (s *Sequence) FrameAt(phase float64) *Frame {
	i := s.IndexAt(phase)
	if i < 0 {
		return nil
	}
	return &s.Frames[i]
}

// View size limits applied to a loaded animation.
const (
	minViewSide = 64
	maxViewSide = 4096
)

// DefaultViewSize is the surface size used while nothing is loaded.
var DefaultViewSize = image.Pt(420, 280)

// PreferredSize returns the surface size for this animation, clamped to sane
// bounds.
func (s *Sequence) PreferredSize() image.Point {
	if !s.valid() {
		return DefaultViewSize
	}
	return image.Pt(clampInt(s.Width, minViewSide, maxViewSide), clampInt(s.Height, minViewSide, maxViewSide))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
