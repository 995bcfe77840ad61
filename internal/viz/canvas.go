package viz

import (
	"math"
	"strings"
)

// Each braille cell holds 2x4 dots. dotBits[y][x] is the bit of the dot
// in column x and row y of the cell, on top of the blank pattern U+2800.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const brailleBlank rune = 0x2800

// Canvas is a Width x Height grid of braille cells addressed in
// sub-pixels, (2*Width) x (4*Height), with y growing downward.
type Canvas struct {
	Width, Height int
	cells         []rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([]rune, w*h)}
	c.Clear()
	return c
}

// PixelWidth and PixelHeight are the sub-pixel resolution.
func (c *Canvas) PixelWidth() int  { return 2 * c.Width }
func (c *Canvas) PixelHeight() int { return 4 * c.Height }

// Cell returns the braille rune at a cell position.
func (c *Canvas) Cell(col, row int) rune { return c.cells[row*c.Width+col] }

// Set turns on the sub-pixel (x, y); points off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= c.PixelWidth() || y >= c.PixelHeight() {
		return
	}
	c.cells[(y/4)*c.Width+x/2] |= dotBits[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = brailleBlank
	}
}

// DrawLine sets every sub-pixel on the segment between two points.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	c.line(x0, y0, x1, y1, 1)
}

// DrawDashed sets one sub-pixel out of every period along the segment.
func (c *Canvas) DrawDashed(x0, y0, x1, y1, period int) {
	c.line(x0, y0, x1, y1, max(period, 1))
}

// line walks the segment with integer error accumulation (Bresenham).
func (c *Canvas) line(x0, y0, x1, y1, period int) {
	dx, dy := absInt(x1-x0), -absInt(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for i := 0; ; i++ {
		if i%period == 0 {
			c.Set(x0, y0)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(len(c.cells)*3 + c.Height)
	for row := range c.Height {
		b.WriteString(string(c.cells[row*c.Width : (row+1)*c.Width]))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Viewport maps a world rectangle onto the canvas sub-pixels, keeping the
// aspect ratio.
type Viewport struct {
	MinU, MaxU float64
	MinV, MaxV float64
}

// Fit grows the viewport to contain (u, v).
func (vp *Viewport) Fit(u, v float64) {
	vp.MinU, vp.MaxU = math.Min(vp.MinU, u), math.Max(vp.MaxU, u)
	vp.MinV, vp.MaxV = math.Min(vp.MinV, v), math.Max(vp.MaxV, v)
}

func emptyViewport() Viewport {
	return Viewport{MinU: math.Inf(1), MaxU: math.Inf(-1), MinV: math.Inf(1), MaxV: math.Inf(-1)}
}

// Map converts world (u, v) into sub-pixels with u to the right and v up.
func (vp Viewport) Map(c *Canvas, u, v float64) (int, int) {
	du, dv := vp.MaxU-vp.MinU, vp.MaxV-vp.MinV
	if !(du > 0) {
		du = 1
	}
	if !(dv > 0) {
		dv = 1
	}
	pw, ph := float64(c.PixelWidth()-1), float64(c.PixelHeight()-1)
	scale := math.Min(pw/du, ph/dv)
	// Center the drawing on the unused axis
	offU := (pw - scale*du) / 2
	offV := (ph - scale*dv) / 2
	x := offU + (u-vp.MinU)*scale
	y := ph - offV - (v-vp.MinV)*scale
	return int(math.Round(x)), int(math.Round(y))
}
