package render

import (
	"fmt"
	"time"

	"trading-chartv1/internal/indicator"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/viewport"
)

// Layers toggles the optional layers. Candles are always drawn.
type Layers struct {
	Grid      bool `json:"grid" yaml:"grid"`
	Volume    bool `json:"volume" yaml:"volume"`
	Orders    bool `json:"orders" yaml:"orders"`
	Signals   bool `json:"signals" yaml:"signals"`
	Crosshair bool `json:"crosshair" yaml:"crosshair"`
}

// AllLayers enables everything.
func AllLayers() Layers {
	return Layers{Grid: true, Volume: true, Orders: true, Signals: true, Crosshair: true}
}

// Style holds drawing settings that are not per-frame data.
type Style struct {
	Palette      Palette `json:"palette" yaml:"palette"`
	Layers       Layers  `json:"layers" yaml:"layers"`
	GridRows     int     `json:"grid_rows" yaml:"grid_rows"`
	GridCols     int     `json:"grid_cols" yaml:"grid_cols"`
	VolumeHeight float64 `json:"volume_height" yaml:"volume_height"`
	PriceLabels  int     `json:"price_labels" yaml:"price_labels"`
	FontSize     float64 `json:"font_size" yaml:"font_size"`
}

// DefaultStyle is a 10x20 grid, a 60px volume band and 6 price labels.
func DefaultStyle() Style {
	return Style{
		Palette:      DefaultPalette(),
		Layers:       AllLayers(),
		GridRows:     10,
		GridCols:     20,
		VolumeHeight: 60,
		PriceLabels:  6,
		FontSize:     10,
	}
}

// Crosshair is the pointer readout.
type Crosshair struct {
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Price  float64       `json:"price"`
	Index  int           `json:"index"` // -1 when the pointer is off the data
	Candle *model.Candle `json:"candle,omitempty"`
}

// Frame is an immutable snapshot of everything one render needs. Candles and
// every indicator window cover the same series range [First, First+len(Candles)).
type Frame struct {
	Seq        uint64                  `json:"seq"`
	Symbol     string                  `json:"symbol"`
	Timeframe  model.Timeframe         `json:"timeframe"`
	Digits     int                     `json:"digits"`
	Status     string                  `json:"status"`
	Layout     viewport.Layout         `json:"layout"`
	Scale      viewport.PriceScale     `json:"scale"`
	First      int                     `json:"first"`
	Candles    []model.Candle          `json:"candles"`
	MaxVolume  float64                 `json:"max_volume"` // largest volume in Candles
	Indicators []indicator.Line        `json:"indicators"`
	Orders     []model.OrderAnnotation `json:"orders,omitempty"`
	Signals    []model.Signal          `json:"signals,omitempty"`
	Crosshair  *Crosshair              `json:"crosshair,omitempty"`
	Style      Style                   `json:"-"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Validate checks that every indicator window is aligned with the candles.
func (f *Frame) Validate() error {
	for _, l := range f.Indicators {
		if l.First != f.First || len(l.Values) != len(f.Candles) {
			return fmt.Errorf("indicator %s window [%d,+%d) misaligned with candles [%d,+%d)",
				l.Name, l.First, len(l.Values), f.First, len(f.Candles))
		}
	}
	return nil
}

// X returns the slot centre of the k-th visible candle.
func (f *Frame) X(k int) float64 { return f.Layout.IndexToX(f.First + k) }

// Y maps a price onto the plot.
func (f *Frame) Y(price float64) float64 { return f.Scale.PriceToY(price, f.Layout.Height) }
