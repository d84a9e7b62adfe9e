package geom

import "math"

// Point represents a position on the logical drawing plane. Coordinates are
// canvas units, not screen pixels; the plane is unbounded.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the euclidean distance between two points.
func Distance(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Angle returns the angle in radians of the segment from p to q, measured
// from the positive x axis. Coincident points yield 0, not an error.
func Angle(p, q Point) float64 {
	if p == q {
		return 0
	}
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Rect is an axis-aligned rectangle with non-negative width and height.
type Rect struct {
	X, Y, W, H float64
}

// NormalizeRect builds a Rect from two opposite corners in any drag
// direction. Coincident corners produce a zero-size rect.
func NormalizeRect(a, b Point) Rect {
	return Rect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
}

// Contains reports whether p lies inside the rect, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Bounds returns the bounding rect of a polyline. An empty slice yields a
// zero rect.
func Bounds(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// ClosesLoop reports whether the last point of a polygon-in-progress has
// come back within threshold of the first, i.e. the polygon should snap
// shut. The threshold is supplied by the caller in canvas units (callers
// divide a pixel threshold by their zoom scale). Fewer than three points
// can never close.
func ClosesLoop(points []Point, threshold float64) bool {
	if len(points) < 3 || threshold < 0 {
		return false
	}
	return Distance(points[0], points[len(points)-1]) <= threshold
}
