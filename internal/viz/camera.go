package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera projects 3D track points onto the canvas with a perspective view
// around a target point.
type Camera struct {
	Target     r3.Vec
	Extent     float64
	Distance   float64
	RotX, RotY float64
	Zoom       float64
}

func NewCamera() *Camera {
	return &Camera{Extent: 1, Distance: 3, RotX: 0.4, RotY: 0.6, Zoom: 1}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// Frame centers the camera on a bounding box.
func (c *Camera) Frame(lo, hi r3.Vec) {
	c.Target = r3.Scale(0.5, r3.Add(lo, hi))
	c.Extent = math.Max(r3.Norm(r3.Sub(hi, lo))/2, 1e-9)
}

func (c *Camera) rotate(p r3.Vec) r3.Vec {
	p = r3.Scale(1/c.Extent, r3.Sub(p, c.Target))
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	return r3.Scale(c.Zoom, p)
}

// Project returns the sub-pixel of p and whether it is in front of the
// camera.
func (c *Camera) Project(cv *Canvas, p r3.Vec) (int, int, bool) {
	rot := c.rotate(p)
	if rot.Z >= c.Distance-0.1 {
		return 0, 0, false
	}
	scale := c.Distance / (c.Distance - rot.Z)
	sw, sh := cv.PixelWidth(), cv.PixelHeight()
	half := float64(min(sw, sh)) / 2.5
	sx := int(rot.X*scale*half) + sw/2
	sy := int(-rot.Y*scale*half) + sh/2
	return sx, sy, true
}

// DrawPath draws the segments of a polyline that are in front of the
// camera.
func (c *Camera) DrawPath(cv *Canvas, path []r3.Vec) {
	px, py, prev := 0, 0, false
	for _, p := range path {
		x, y, ok := c.Project(cv, p)
		if ok && prev {
			cv.DrawLine(px, py, x, y)
		} else if ok {
			cv.Set(x, y)
		}
		px, py, prev = x, y, ok
	}
}
