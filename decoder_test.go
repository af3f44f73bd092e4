package gifsync

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		kind   error
		status string
	}{
		{"nil", nil, ErrEmptyInput, StatusReadFailed},
		{"empty", []byte{}, ErrEmptyInput, StatusReadFailed},
		{"garbage", []byte("definitely not a gif"), ErrDecodeFailure, StatusBadGIF},
		{"truncated header", []byte("GIF89a"), ErrDecodeFailure, StatusBadGIF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := Decode(tt.data)
			if seq != nil {
				t.Errorf("Decode() returned a sequence with %d frames", seq.Len())
			}
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.kind)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode() error %T is not a *DecodeError", err)
			}
			if got := StatusFor(err); got != tt.status {
				t.Errorf("StatusFor() = %q, want %q", got, tt.status)
			}
		})
	}
}

func TestDecodeDelays(t *testing.T) {
	full := image.Rect(0, 0, 2, 2)
	data := encodeGIF(t, 2, 2,
		gifFrame{rect: full, fill: red, delay: 10},   // 100ms
		gifFrame{rect: full, fill: green, delay: 0},  // unset
		gifFrame{rect: full, fill: blue, delay: 2000}, // 20s
	)

	seq, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if seq.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", seq.Len())
	}
	if seq.Width != 2 || seq.Height != 2 {
		t.Errorf("size = %dx%d, want 2x2", seq.Width, seq.Height)
	}

	want := []float64{0.1, 1.0 / 24.0, 10}
	var end float64
	for i, f := range seq.Frames {
		if !approx(f.Duration, want[i]) {
			t.Errorf("frame %d duration = %v, want %v", i, f.Duration, want[i])
		}
		end += want[i]
		if !approx(f.End, end) {
			t.Errorf("frame %d end = %v, want %v", i, f.End, end)
		}
		if f.Image.Bounds() != full {
			t.Errorf("frame %d bounds = %v, want %v", i, f.Image.Bounds(), full)
		}
	}
	if !approx(seq.Total, end) {
		t.Errorf("Total = %v, want %v", seq.Total, end)
	}
}

func TestFrameSeconds(t *testing.T) {
	tests := []struct {
		ms   int
		want float64
	}{
		{-5, defaultFrameSeconds},
		{0, defaultFrameSeconds},
		{1, 0.001},
		{40, 0.04},
		{10000, 10},
		{60000, 10},
	}
	for _, tt := range tests {
		if got := frameSeconds(tt.ms); !approx(got, tt.want) {
			t.Errorf("frameSeconds(%d) = %v, want %v", tt.ms, got, tt.want)
		}
	}
}

func TestDecodeSingleFrame(t *testing.T) {
	data := encodeGIF(t, 3, 5, gifFrame{rect: image.Rect(0, 0, 3, 5), fill: green})

	seq, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if seq.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", seq.Len())
	}
	if !approx(seq.Total, defaultFrameSeconds) {
		t.Errorf("Total = %v, want %v", seq.Total, defaultFrameSeconds)
	}
	for _, phase := range []float64{0, 0.5, 0.999} {
		if i := seq.IndexAt(phase); i != 0 {
			t.Errorf("IndexAt(%v) = %d, want 0", phase, i)
		}
	}
}

func TestDecodeDisposal(t *testing.T) {
	full := image.Rect(0, 0, 4, 4)
	corner := image.Rect(0, 0, 2, 2)
	dot := image.Rect(3, 3, 4, 4)

	tests := []struct {
		name     string
		disposal byte
		origin   color.NRGBA // pixel (0,0) of the last frame
	}{
		{"none keeps the patch", 0, color.NRGBA{G: 255, A: 255}},
		{"background clears the patch", 2, color.NRGBA{}},
		{"previous restores the canvas", 3, color.NRGBA{R: 255, A: 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeGIF(t, 4, 4,
				gifFrame{rect: full, fill: red, delay: 5},
				gifFrame{rect: corner, fill: green, delay: 5, disposal: tt.disposal},
				gifFrame{rect: dot, fill: blue, delay: 5},
			)

			seq, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if seq.Len() != 3 {
				t.Fatalf("Len() = %d, want 3", seq.Len())
			}

			// the patch itself is always visible on its own frame
			if got := seq.Frames[1].Image.NRGBAAt(0, 0); got != (color.NRGBA{G: 255, A: 255}) {
				t.Errorf("frame 1 (0,0) = %v, want green", got)
			}
			last := seq.Frames[2].Image
			if got := last.NRGBAAt(0, 0); got != tt.origin {
				t.Errorf("frame 2 (0,0) = %v, want %v", got, tt.origin)
			}
			if got := last.NRGBAAt(2, 2); got != (color.NRGBA{R: 255, A: 255}) {
				t.Errorf("frame 2 (2,2) = %v, want red", got)
			}
			if got := last.NRGBAAt(3, 3); got != (color.NRGBA{B: 255, A: 255}) {
				t.Errorf("frame 2 (3,3) = %v, want blue", got)
			}
		})
	}
}

func TestDecodeFramesAreIndependent(t *testing.T) {
	seq, err := Decode(threeFrameGIF(t))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	first := seq.Frames[0].Image
	if first == seq.Frames[1].Image {
		t.Fatal("frames share one image buffer")
	}
	if got := first.NRGBAAt(1, 1); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("frame 0 (1,1) = %v, want red after later frames were drawn", got)
	}
}
