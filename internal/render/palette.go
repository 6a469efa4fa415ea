package render

import (
	"fmt"
	"sort"
	"strings"
)

// Palette colors every layer.
type Palette struct {
	Name       string  `json:"name" yaml:"name"`
	Background Color   `json:"background" yaml:"background"`
	Grid       Color   `json:"grid" yaml:"grid"`
	Text       Color   `json:"text" yaml:"text"`
	Bull       Color   `json:"bull" yaml:"bull"`
	Bear       Color   `json:"bear" yaml:"bear"`
	Crosshair  Color   `json:"crosshair" yaml:"crosshair"`
	Entry      Color   `json:"entry" yaml:"entry"`
	StopLoss   Color   `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit Color   `json:"take_profit" yaml:"take_profit"`
	Lines      []Color `json:"lines" yaml:"lines"` // indicator colors, cycled
}

// LineColor returns the color for the i-th indicator.
func (p Palette) LineColor(i int) Color {
	if len(p.Lines) == 0 {
		return p.Text
	}
	return p.Lines[i%len(p.Lines)]
}

var seriesColors = []Color{Hex("#2962ff"), Hex("#ff6d00"), Hex("#ab47bc"), Hex("#26c6da"), Hex("#d4e157")}

var palettes = map[string]Palette{
	"dark": {
		Name: "dark", Background: Hex("#000000"), Grid: Hex("#808080"), Text: Hex("#d1d4dc"),
		Bull: Hex("#26a69a"), Bear: Hex("#ef5350"), Crosshair: Hex("#9598a1"),
		Entry: Hex("#2196f3"), StopLoss: Hex("#f44336"), TakeProfit: Hex("#4caf50"),
		Lines: seriesColors,
	},
	"light": {
		Name: "light", Background: Hex("#ffffff"), Grid: Hex("#c8c8c8"), Text: Hex("#131722"),
		Bull: Hex("#089981"), Bear: Hex("#f23645"), Crosshair: Hex("#787b86"),
		Entry: Hex("#1e88e5"), StopLoss: Hex("#e53935"), TakeProfit: Hex("#43a047"),
		Lines: seriesColors,
	},
	"classic": {
		Name: "classic", Background: Hex("#ffffff"), Grid: Hex("#dddddd"), Text: Hex("#000000"),
		Bull: Hex("#ffffff"), Bear: Hex("#000000"), Crosshair: Hex("#555555"),
		Entry: Hex("#0000ff"), StopLoss: Hex("#ff0000"), TakeProfit: Hex("#008000"),
		Lines: []Color{Hex("#0000ff"), Hex("#ff0000"), Hex("#008000")},
	},
	"neon": {
		Name: "neon", Background: Hex("#0d0221"), Grid: Hex("#261447"), Text: Hex("#f6f7f8"),
		Bull: Hex("#00ff9f"), Bear: Hex("#ff0055"), Crosshair: Hex("#00b8ff"),
		Entry: Hex("#00b8ff"), StopLoss: Hex("#ff0055"), TakeProfit: Hex("#00ff9f"),
		Lines: []Color{Hex("#d600ff"), Hex("#00b8ff"), Hex("#fffc00")},
	},
	"professional": {
		Name: "professional", Background: Hex("#131722"), Grid: Hex("#2a2e39"), Text: Hex("#b2b5be"),
		Bull: Hex("#ffd700"), Bear: Hex("#787b86"), Crosshair: Hex("#ffd700"),
		Entry: Hex("#ffd700"), StopLoss: Hex("#f23645"), TakeProfit: Hex("#089981"),
		Lines: seriesColors,
	},
}

// DefaultPalette is the dark scheme.
func DefaultPalette() Palette { return palettes["dark"] }

// LookupPalette returns a built-in scheme by name.
func LookupPalette(name string) (Palette, error) {
	p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Palette{}, fmt.Errorf("unknown color scheme %q (have %s)", name, strings.Join(PaletteNames(), ", "))
	}
	return p, nil
}

// PaletteNames lists the built-in schemes.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for n := range palettes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
