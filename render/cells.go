package render

import (
	"image"
	"image/color"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// HalfBlock is the glyph used to show two pixels per terminal cell: the
// foreground paints the top half, the background the bottom half.
const HalfBlock = '▀'

var black = colorful.Color{}

// Cell is one terminal cell of a rendered frame.
type Cell struct {
	Rune  rune
	Style tcell.Style
}

// Grid is a frame rendered for a cols x rows terminal area.
type Grid struct {
	Cols, Rows int
	Cells      []Cell // row-major
}

// At returns the cell at column x, row y.
func (g *Grid) At(x, y int) Cell {
	return g.Cells[y*g.Cols+x]
}

// Cells renders img into a cols x rows grid of half-block cells, keeping the
// aspect ratio. Terminal cells are about twice as tall as wide, so each cell
// carries two vertically stacked pixels. Transparent pixels blend to black.
func Cells(img image.Image, cols, rows int) *Grid {
	g := &Grid{Cols: cols, Rows: rows}
	if cols <= 0 || rows <= 0 {
		return g
	}
	g.Cells = make([]Cell, cols*rows)
	blank := Cell{Rune: ' ', Style: tcell.StyleDefault.Background(tcell.ColorBlack)}
	for i := range g.Cells {
		g.Cells[i] = blank
	}
	if img == nil {
		return g
	}

	area := image.Pt(cols, rows*2)
	r := Fit(img.Bounds().Size(), area)
	if r.Empty() {
		return g
	}
	if r.Min.Y%2 == 1 {
		// start on a cell boundary
		r = r.Add(image.Pt(0, -1))
	}
	px := Scale(img, r.Size())

	for y := 0; y < r.Dy(); y += 2 {
		for x := 0; x < r.Dx(); x++ {
			top := termColor(px.NRGBAAt(x, y))
			bottom := tcell.ColorBlack
			if y+1 < r.Dy() {
				bottom = termColor(px.NRGBAAt(x, y+1))
			}

			cx, cy := r.Min.X+x, (r.Min.Y+y)/2
			g.Cells[cy*cols+cx] = Cell{
				Rune:  HalfBlock,
				Style: tcell.StyleDefault.Foreground(top).Background(bottom),
			}
		}
	}
	return g
}

// termColor blends c over black in linear RGB and returns it as a true color.
func termColor(c color.NRGBA) tcell.Color {
	if c.A == 0 {
		return tcell.ColorBlack
	}
	cc := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	if c.A < 255 {
		lr, lg, lb := cc.LinearRgb()
		mix := black.BlendRgb(colorful.Color{R: lr, G: lg, B: lb}, float64(c.A)/255)
		cc = colorful.LinearRgb(mix.R, mix.G, mix.B).Clamped()
	}
	r, g, b := cc.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
