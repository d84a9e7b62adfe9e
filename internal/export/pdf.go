// Package export writes a stroke log out as a vector PDF. This is not the
// rendering surface; it is a plain geometric dump for sharing a board after
// a session.
package export

import (
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"boardsync/internal/geom"
	"boardsync/internal/state"
)

// canvas units per millimetre on the page.
const scale = 3.0

// PDF writes the log to path in layer paint order. Erased strokes and
// layers hidden locally are skipped. Image strokes are drawn as their
// bounding box; embedding raster content is out of scope.
func PDF(path string, strokes *state.StrokeLog, layers *state.LayerRegistry) error {
	p := gofpdf.New("L", "mm", "A4", "")
	p.AddPage()
	p.SetFont("Helvetica", "", 12)

	for _, owner := range layers.Order() {
		if !layers.Visible(owner) {
			continue
		}
		for _, st := range strokes.StrokesByOwner(owner) {
			if st.IsErased || st.Tool == state.ToolEraser {
				continue
			}
			drawStroke(p, st)
		}
	}
	return p.OutputFileAndClose(path)
}

func drawStroke(p *gofpdf.Fpdf, st state.Stroke) {
	r, g, b := parseHexColor(st.Color)
	p.SetDrawColor(r, g, b)
	p.SetFillColor(r, g, b)
	p.SetLineWidth(st.Width / scale)
	if len(st.Dash) > 0 {
		dash := make([]float64, len(st.Dash))
		for i, d := range st.Dash {
			dash[i] = d / scale
		}
		p.SetDashPattern(dash, 0)
	} else {
		p.SetDashPattern(nil, 0)
	}

	switch st.Tool {
	case state.ToolFreehand, state.ToolPolygon:
		polyline(p, st.Points)
		if st.Tool == state.ToolPolygon && len(st.Points) > 2 {
			seg(p, st.Points[len(st.Points)-1], st.Points[0])
		}
	case state.ToolLine, state.ToolArrow:
		if len(st.Points) >= 2 {
			seg(p, st.Points[0], st.Points[len(st.Points)-1])
		}
	case state.ToolRectangle:
		if len(st.Points) >= 2 {
			rect := geom.NormalizeRect(st.Points[0], st.Points[len(st.Points)-1])
			p.Rect(rect.X/scale, rect.Y/scale, rect.W/scale, rect.H/scale, style(st.Fill))
		}
	case state.ToolCircle:
		if len(st.Points) >= 2 {
			rect := geom.NormalizeRect(st.Points[0], st.Points[len(st.Points)-1])
			p.Ellipse((rect.X+rect.W/2)/scale, (rect.Y+rect.H/2)/scale,
				rect.W/2/scale, rect.H/2/scale, 0, style(st.Fill))
		}
	case state.ToolText:
		if len(st.Points) >= 1 && st.Text != "" {
			size := st.FontSize
			if size <= 0 {
				size = 12
			}
			p.SetTextColor(r, g, b)
			p.SetFontSize(size)
			p.Text(st.Points[0].X/scale, st.Points[0].Y/scale, st.Text)
		}
	case state.ToolImage:
		if len(st.Points) >= 1 {
			p.Rect(st.Points[0].X/scale, st.Points[0].Y/scale,
				st.ImageWidth/scale, st.ImageHeight/scale, "D")
		}
	}
}

func polyline(p *gofpdf.Fpdf, points []geom.Point) {
	for i := 1; i < len(points); i++ {
		seg(p, points[i-1], points[i])
	}
}

func seg(p *gofpdf.Fpdf, a, b geom.Point) {
	p.Line(a.X/scale, a.Y/scale, b.X/scale, b.Y/scale)
}

func style(fill bool) string {
	if fill {
		return "FD"
	}
	return "D"
}

// parseHexColor reads #rgb or #rrggbb; anything else is black.
func parseHexColor(s string) (r, g, b int) {
	if len(s) == 0 || s[0] != '#' {
		return 0, 0, 0
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff)
}
