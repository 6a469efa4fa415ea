package render

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNGSurface rasterizes onto a go-chart renderer.
type PNGSurface struct {
	r    chart.Renderer
	w, h float64
}

// NewPNGSurface allocates a raster renderer of the given pixel size.
func NewPNGSurface(width, height int) (*PNGSurface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("png surface: invalid size %dx%d", width, height)
	}
	r, err := chart.PNG(width, height)
	if err != nil {
		return nil, fmt.Errorf("png surface: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("png surface: load font: %w", err)
	}
	r.SetFont(font)
	return &PNGSurface{r: r, w: float64(width), h: float64(height)}, nil
}

func toDrawing(c Color) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func px(v float64) int { return int(math.Round(v)) }

func (p *PNGSurface) Size() (float64, float64) { return p.w, p.h }

func (p *PNGSurface) Fill(bg Color) {
	p.Rect(0, 0, p.w, p.h, bg)
}

func (p *PNGSurface) stroke(s Stroke) {
	p.r.ResetStyle()
	p.r.SetStrokeColor(toDrawing(s.Color))
	p.r.SetStrokeWidth(s.Width)
	p.r.SetStrokeDashArray(s.Dash)
}

func (p *PNGSurface) Line(x1, y1, x2, y2 float64, s Stroke) {
	p.stroke(s)
	p.r.MoveTo(px(x1), px(y1))
	p.r.LineTo(px(x2), px(y2))
	p.r.Stroke()
}

func (p *PNGSurface) Rect(x, y, w, h float64, fill Color) {
	p.r.ResetStyle()
	p.r.SetFillColor(toDrawing(fill))
	p.r.SetStrokeColor(toDrawing(fill))
	p.r.SetStrokeWidth(0)
	p.r.MoveTo(px(x), px(y))
	p.r.LineTo(px(x+w), px(y))
	p.r.LineTo(px(x+w), px(y+h))
	p.r.LineTo(px(x), px(y+h))
	p.r.Close()
	p.r.FillStroke()
}

func (p *PNGSurface) Polyline(pts []Point, s Stroke) {
	if len(pts) < 2 {
		return
	}
	p.stroke(s)
	p.r.MoveTo(px(pts[0].X), px(pts[0].Y))
	for _, pt := range pts[1:] {
		p.r.LineTo(px(pt.X), px(pt.Y))
	}
	p.r.Stroke()
}

func (p *PNGSurface) Marker(x, y, r float64, fill Color) {
	p.r.ResetStyle()
	p.r.SetFillColor(toDrawing(fill))
	p.r.SetStrokeColor(toDrawing(fill))
	p.r.Circle(r, px(x), px(y))
	p.r.FillStroke()
}

func (p *PNGSurface) Text(x, y float64, text string, st TextStyle) {
	p.r.ResetStyle()
	p.r.SetFontColor(toDrawing(st.Color))
	p.r.SetFontSize(st.Size)
	box := p.r.MeasureText(text)
	switch st.Align {
	case "right":
		x -= float64(box.Width())
	case "center":
		x -= float64(box.Width()) / 2
	}
	p.r.Text(text, px(x), px(y))
}

// Encode writes the PNG.
func (p *PNGSurface) Encode(w io.Writer) error {
	return p.r.Save(w)
}
