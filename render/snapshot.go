package render

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	gifsync "github.com/DatanoiseTV/gifsync-go"
)

const statusFontSize = 16

var (
	fontOnce   sync.Once
	statusFont *truetype.Font
	fontErr    error
)

// statusFace returns a new face for the status text. Faces cache glyphs and
// are not safe for concurrent use, so each Draw gets its own; the parsed
// font is shared.
func statusFace() (font.Face, error) {
	fontOnce.Do(func() {
		statusFont, fontErr = truetype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("failed to parse status font: %w", fontErr)
		}
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(statusFont, &truetype.Options{Size: statusFontSize}), nil
}

// Fit returns the largest rectangle with the aspect ratio of src that fits
// centered inside dst.
func Fit(src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return image.Rectangle{}
	}
	w, h := dst.X, src.Y*dst.X/src.X
	if h > dst.Y {
		w, h = src.X*dst.Y/src.Y, dst.Y
	}
	w, h = max(w, 1), max(h, 1)
	x, y := (dst.X-w)/2, (dst.Y-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Scale resizes img into a new NRGBA image of the given size.
func Scale(img image.Image, size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rectangle{Max: size})
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Draw renders v onto a black canvas of the given size: the current frame
// scaled to fit, or the status line when there is none. A zero size uses
// the animation's preferred size.
func Draw(v gifsync.View, size image.Point) (*gg.Context, error) {
	if size.X <= 0 || size.Y <= 0 {
		size = v.Sequence.PreferredSize()
	}

	dc := gg.NewContext(size.X, size.Y)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	if v.Frame != nil && v.Frame.Image != nil {
		r := Fit(v.Frame.Image.Bounds().Size(), size)
		if !r.Empty() {
			dc.DrawImage(Scale(v.Frame.Image, r.Size()), r.Min.X, r.Min.Y)
		}
		return dc, nil
	}

	face, err := statusFace()
	if err != nil {
		return nil, err
	}
	status := v.Status
	if status == "" {
		status = gifsync.StatusPrompt
	}
	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(status, float64(size.X)/2, float64(size.Y)/2, 0.5, 0.5, float64(size.X)-20, 1.4, gg.AlignCenter)
	return dc, nil
}

// Snapshot renders v to an image.
func Snapshot(v gifsync.View, size image.Point) (image.Image, error) {
	dc, err := Draw(v, size)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// EncodePNG renders v and writes it to w as PNG.
func EncodePNG(w io.Writer, v gifsync.View, size image.Point) error {
	dc, err := Draw(v, size)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePNG renders v into dir under a timestamped name and returns the path.
func SavePNG(dir string, v gifsync.View, size image.Point, now time.Time) (string, error) {
	dc, err := Draw(v, size)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("gifsync-%s-%03d.png", now.Format("20060102-150405"), now.Nanosecond()/int(time.Millisecond)))
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return path, nil
}
