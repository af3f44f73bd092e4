package gifsync

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var (
	transparent = color.RGBA{}
	red         = color.RGBA{R: 255, A: 255}
	green       = color.RGBA{G: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}

	testPalette = color.Palette{transparent, red, green, blue}
)

// gifFrame is one block of a test animation.
type gifFrame struct {
	rect     image.Rectangle
	fill     color.Color
	delay    int // hundredths of a second
	disposal byte
}

// encodeGIF builds an animated GIF of the given canvas size.
func encodeGIF(t *testing.T, w, h int, frames ...gifFrame) []byte {
	t.Helper()

	g := &gif.GIF{
		Config: image.Config{Width: w, Height: h, ColorModel: testPalette},
	}
	for _, f := range frames {
		p := image.NewPaletted(f.rect, testPalette)
		idx := uint8(testPalette.Index(f.fill))
		for i := range p.Pix {
			p.Pix[i] = idx
		}
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, f.delay)
		g.Disposal = append(g.Disposal, f.disposal)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("EncodeAll() failed: %v", err)
	}
	return buf.Bytes()
}

// threeFrameGIF is a 4x4 animation of three equally long solid frames.
func threeFrameGIF(t *testing.T) []byte {
	t.Helper()
	full := image.Rect(0, 0, 4, 4)
	return encodeGIF(t, 4, 4,
		gifFrame{rect: full, fill: red, delay: 10},
		gifFrame{rect: full, fill: green, delay: 10},
		gifFrame{rect: full, fill: blue, delay: 10},
	)
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
