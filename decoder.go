package gifsync

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"io"

	"golang.org/x/image/draw"
)

const (
	defaultFrameSeconds = 1.0 / 24.0
	minFrameSeconds     = 0.001
	maxFrameSeconds     = 10.0
)

var (
	errNoFrames = errors.New("no frames")
	errNoSize   = errors.New("non-positive dimensions")
)

// Decode turns a GIF byte stream into a frame sequence. Every frame is a full
// canvas composited the way a browser would play it, so frames can be shown
// in any order.
func Decode(data []byte) (*Sequence, error) {
	if len(data) == 0 {
		return nil, decodeError(ErrEmptyInput, nil)
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(ErrDecodeFailure, err)
	}
	return buildSequence(g)
}

// DecodeReader reads r to the end and decodes the result.
func DecodeReader(r io.Reader) (*Sequence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, decodeError(ErrIOFailure, err)
	}
	return Decode(data)
}

func buildSequence(g *gif.GIF) (*Sequence, error) {
	if len(g.Image) == 0 {
		return nil, decodeError(ErrDecodeFailure, errNoFrames)
	}

	size := image.Pt(g.Config.Width, g.Config.Height)
	if size.X <= 0 || size.Y <= 0 {
		// Logical screen missing: fall back to the union of the frame rects.
		var bounds image.Rectangle
		for _, p := range g.Image {
			bounds = bounds.Union(p.Bounds())
		}
		size = bounds.Max
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, decodeError(ErrDecodeFailure, errNoSize)
	}

	rect := image.Rectangle{Max: size}
	canvas := image.NewNRGBA(rect)
	var previous *image.NRGBA

	seq := &Sequence{
		Frames: make([]Frame, 0, len(g.Image)),
		Width:  size.X,
		Height: size.Y,
	}

	for i, p := range g.Image {
		disposal := disposalAt(g, i)
		if disposal == gif.DisposalPrevious {
			if previous == nil {
				previous = image.NewNRGBA(rect)
			}
			copy(previous.Pix, canvas.Pix)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)

		img := image.NewNRGBA(rect)
		copy(img.Pix, canvas.Pix)

		d := frameSeconds(delayAt(g, i))
		seq.Total += d
		seq.Frames = append(seq.Frames, Frame{Image: img, Duration: d, End: seq.Total})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			copy(canvas.Pix, previous.Pix)
		}
	}

	return seq, nil
}

func disposalAt(g *gif.GIF, i int) byte {
	if i < len(g.Disposal) {
		return g.Disposal[i]
	}
	return 0
}

// delayAt returns the frame delay in milliseconds. GIF stores hundredths.
func delayAt(g *gif.GIF, i int) int {
	if i < len(g.Delay) {
		return g.Delay[i] * 10
	}
	return 0
}

func frameSeconds(ms int) float64 {
	if ms <= 0 {
		return defaultFrameSeconds
	}
	sec := float64(ms) / 1000.0
	if sec < minFrameSeconds {
		return minFrameSeconds
	}
	if sec > maxFrameSeconds {
		return maxFrameSeconds
	}
	return sec
}
