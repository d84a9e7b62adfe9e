package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 5.0, Distance(Pt(0, 0), Pt(3, 4)))
	assert.Equal(t, 0.0, Distance(Pt(2, 2), Pt(2, 2)))
}

func TestAngle(t *testing.T) {
	assert.InDelta(t, 0, Angle(Pt(0, 0), Pt(1, 0)), 1e-9)
	assert.InDelta(t, math.Pi/2, Angle(Pt(0, 0), Pt(0, 1)), 1e-9)
	assert.InDelta(t, math.Pi, Angle(Pt(0, 0), Pt(-1, 0)), 1e-9)

	// Coincident points are a zero-angle result, not a failure.
	assert.Equal(t, 0.0, Angle(Pt(5, 5), Pt(5, 5)))
}

func TestNormalizeRect(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b Point
	}{
		{"down-right", Pt(1, 2), Pt(4, 6)},
		{"up-left", Pt(4, 6), Pt(1, 2)},
		{"down-left", Pt(4, 2), Pt(1, 6)},
		{"up-right", Pt(1, 6), Pt(4, 2)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NormalizeRect(tc.a, tc.b)
			assert.Equal(t, Rect{X: 1, Y: 2, W: 3, H: 4}, r)
		})
	}

	zero := NormalizeRect(Pt(3, 3), Pt(3, 3))
	assert.Equal(t, Rect{X: 3, Y: 3}, zero)
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}
	assert.True(t, r.Contains(Pt(5, 5)))
	assert.True(t, r.Contains(Pt(0, 10)), "edges count as inside")
	assert.False(t, r.Contains(Pt(-1, 5)))
}

func TestBounds(t *testing.T) {
	r := Bounds([]Point{Pt(2, 8), Pt(-1, 3), Pt(4, 5)})
	assert.Equal(t, Rect{X: -1, Y: 3, W: 5, H: 5}, r)
	assert.Equal(t, Rect{}, Bounds(nil))
}

func TestClosesLoop(t *testing.T) {
	open := []Point{Pt(0, 0), Pt(10, 0), Pt(10, 10)}
	assert.False(t, ClosesLoop(open, 1))

	closing := []Point{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0.5, 0.5)}
	assert.True(t, ClosesLoop(closing, 1))
	assert.False(t, ClosesLoop(closing, 0.1))

	// Two points are a segment, never a polygon.
	assert.False(t, ClosesLoop([]Point{Pt(0, 0), Pt(0, 0)}, 100))
}
