package nn

import (
	"encoding/json"
	"fmt"

	"github.com/chewxy/math32"
)

// Point is a 2D point. Zone and line points are normalized to [0,1].
// JSON form is [x, y].
type Point struct {
	X float32
	Y float32
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float32{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var v []float32
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if len(v) != 2 {
		return fmt.Errorf("Point must have 2 elements, not %v", len(v))
	}
	p.X, p.Y = v[0], v[1]
	return nil
}

// Rect is an axis-aligned box, in pixel coordinates unless stated otherwise.
// JSON form is [x1, y1, x2, y2].
type Rect struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

func MakeRect(x1, y1, x2, y2 float32) Rect {
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float32{r.X1, r.Y1, r.X2, r.Y2})
}

func (r *Rect) UnmarshalJSON(b []byte) error {
	var v []float32
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("Rect must have 4 elements, not %v", len(v))
	}
	r.X1, r.Y1, r.X2, r.Y2 = v[0], v[1], v[2], v[3]
	return nil
}

func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area is zero for degenerate (inverted or flat) boxes
func (r Rect) Area() float32 {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return (r.X2 - r.X1) * (r.Y2 - r.Y1)
}

// Intersection returns the overlapping region. If the boxes don't overlap,
// the result has zero area.
func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X1, b.X1)
	y1 := max(r.Y1, b.Y1)
	x2 := min(r.X2, b.X2)
	y2 := min(r.Y2, b.Y2)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func (r Rect) Union(b Rect) Rect {
	return Rect{
		X1: min(r.X1, b.X1),
		Y1: min(r.Y1, b.Y1),
		X2: max(r.X2, b.X2),
		Y2: max(r.Y2, b.Y2),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	inter := r.Intersection(b).Area()
	if inter == 0 {
		return 0
	}
	denom := r.Area() + b.Area() - inter
	if denom <= 0 {
		return 0
	}
	return inter / denom
}

// OverlapFraction returns the fraction of r's area that lies inside b.
// This is asymmetric, and is what we use to decide whether a small box (eg a face)
// belongs to a big box (eg a body). Zero-area boxes have no overlap.
func (r Rect) OverlapFraction(b Rect) float32 {
	area := r.Area()
	if area == 0 {
		return 0
	}
	return r.Intersection(b).Area() / area
}

func (r Rect) Center() Point {
	return Point{
		X: (r.X1 + r.X2) / 2,
		Y: (r.Y1 + r.Y2) / 2,
	}
}

// Feet is the bottom-center of the box, which approximates where a standing person touches the floor
func (r Rect) Feet() Point {
	return Point{
		X: (r.X1 + r.X2) / 2,
		Y: r.Y2,
	}
}

// Corners returns top-left, top-right, bottom-left, bottom-right
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X1, r.Y1},
		{r.X2, r.Y1},
		{r.X1, r.Y2},
		{r.X2, r.Y2},
	}
}

// Normalize converts pixel coordinates to [0,1] coordinates for an image of the given size.
func (p Point) Normalize(width, height int) Point {
	return Point{
		X: p.X / float32(width),
		Y: p.Y / float32(height),
	}
}

// PointInPolygon is a ray-casting test. Polygons with fewer than 3 points contain nothing.
func PointInPolygon(p Point, polygon []Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi := polygon[i]
		pj := polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			dy := pj.Y - pi.Y
			if dy == 0 {
				dy = 1e-10
			}
			if p.X < (pj.X-pi.X)*(p.Y-pi.Y)/dy+pi.X {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// LineSide returns the signed cross product of p relative to the directed line a->b.
// The sign tells you which side of the line p is on. Zero means p is on the line.
func LineSide(p, a, b Point) float32 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}
