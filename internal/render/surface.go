// Package render composites a chart frame onto a 2D surface.
//
// Layers are drawn in a fixed z-order: grid, candles, volume, indicators,
// order lines, signal markers, crosshair. Each layer reads only the frame
// geometry and its own snapshot, so a failing layer never blocks the rest.
package render

import (
	"fmt"
	"strconv"
)

// Color is 8-bit RGBA.
type Color struct {
	R, G, B, A uint8
}

// Hex parses "#rrggbb" or "#rrggbbaa". Invalid input yields opaque black.
func Hex(s string) Color {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 && len(s) != 8 {
		return Color{A: 255}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{A: 255}
	}
	if len(s) == 6 {
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}

// WithAlpha returns c with opacity a in [0,1].
func (c Color) WithAlpha(a float64) Color {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	c.A = uint8(a * 255)
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// MarshalText encodes the color as hex.
func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a hex color.
func (c *Color) UnmarshalText(b []byte) error {
	*c = Hex(string(b))
	return nil
}

// Stroke describes a line.
type Stroke struct {
	Color Color     `json:"color"`
	Width float64   `json:"width"`
	Dash  []float64 `json:"dash,omitempty"`
}

// Point is a pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextStyle describes a label.
type TextStyle struct {
	Color Color   `json:"color"`
	Size  float64 `json:"size"`
	// Align is "left", "right" or "center" relative to x.
	Align string `json:"align,omitempty"`
}

// Surface is any 2D drawing target.
type Surface interface {
	Size() (width, height float64)
	Fill(bg Color)
	Line(x1, y1, x2, y2 float64, s Stroke)
	Rect(x, y, w, h float64, fill Color)
	Polyline(pts []Point, s Stroke)
	Marker(x, y, r float64, fill Color)
	Text(x, y float64, text string, st TextStyle)
}
