package gifsync

import (
	"image"
	"math"
	"testing"
)

func quarterSequence() *Sequence {
	return &Sequence{
		Frames: []Frame{
			{Duration: 0.25, End: 0.25},
			{Duration: 0.25, End: 0.5},
			{Duration: 0.5, End: 1},
		},
		Total: 1,
	}
}

func TestIndexAt(t *testing.T) {
	seq := quarterSequence()

	tests := []struct {
		phase float64
		want  int
	}{
		{0, 0},
		{0.1, 0},
		{0.25, 0}, // end boundary belongs to the earlier frame
		{0.26, 1},
		{0.5, 1},
		{0.51, 2},
		{0.999, 2},
		{1, 2},
		{7, 2},
		{-3, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := seq.IndexAt(tt.phase); got != tt.want {
			t.Errorf("IndexAt(%v) = %d, want %d", tt.phase, got, tt.want)
		}
		if f := seq.FrameAt(tt.phase); f != &seq.Frames[tt.want] {
			t.Errorf("FrameAt(%v) did not return frame %d", tt.phase, tt.want)
		}
	}
}

func TestIndexAtRoundingPastTotal(t *testing.T) {
	// cumulative ends that sum a hair below Total still resolve
	seq := &Sequence{
		Frames: []Frame{{Duration: 0.1, End: 0.1}, {Duration: 0.2, End: 0.30000000000000004 - 1e-12}},
		Total:  0.30000000000000004,
	}
	if got := seq.IndexAt(1); got != 1 {
		t.Errorf("IndexAt(1) = %d, want 1", got)
	}
}

func TestIndexAtEmpty(t *testing.T) {
	var nilSeq *Sequence
	for _, seq := range []*Sequence{nilSeq, {}, {Frames: []Frame{{}}, Total: 0}} {
		if got := seq.IndexAt(0.5); got != -1 {
			t.Errorf("IndexAt() on %+v = %d, want -1", seq, got)
		}
		if f := seq.FrameAt(0.5); f != nil {
			t.Errorf("FrameAt() on %+v returned a frame", seq)
		}
	}
	if nilSeq.Len() != 0 {
		t.Error("Len() on nil sequence != 0")
	}
}

func TestPreferredSize(t *testing.T) {
	tests := []struct {
		w, h int
		want image.Point
	}{
		{320, 200, image.Pt(320, 200)},
		{16, 16, image.Pt(64, 64)},
		{10000, 50, image.Pt(4096, 64)},
	}
	for _, tt := range tests {
		seq := &Sequence{Frames: []Frame{{Duration: 1, End: 1}}, Total: 1, Width: tt.w, Height: tt.h}
		if got := seq.PreferredSize(); got != tt.want {
			t.Errorf("PreferredSize(%dx%d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}

	var empty *Sequence
	if got := empty.PreferredSize(); got != DefaultViewSize {
		t.Errorf("PreferredSize() without frames = %v, want %v", got, DefaultViewSize)
	}
}
