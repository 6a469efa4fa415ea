package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"trading-chartv1/internal/indicator"
	"trading-chartv1/internal/render"
	"trading-chartv1/internal/viewport"
)

// Settings is the chart settings file. Zero fields keep the defaults.
//
//	indicators:
//	  - {type: SMA, period: 20}
//	  - {type: RSI, period: 14}
//	palette: neon
//	layers: {grid: true, volume: true, orders: true, signals: true, crosshair: true}
//	viewport: {min_zoom: 0.5, max_zoom: 3, base_visible: 100}
//	frame_interval: 16ms
type Settings struct {
	Indicators    []indicator.Config `yaml:"indicators"`
	Palette       string             `yaml:"palette"`
	Layers        *render.Layers     `yaml:"layers"`
	GridRows      int                `yaml:"grid_rows"`
	GridCols      int                `yaml:"grid_cols"`
	VolumeHeight  *float64           `yaml:"volume_height"`
	PriceLabels   int                `yaml:"price_labels"`
	FontSize      float64            `yaml:"font_size"`
	Viewport      viewport.Config    `yaml:"viewport"`
	FrameInterval time.Duration      `yaml:"frame_interval"`
}

// LoadSettings reads path from fsys. A missing file yields empty settings.
func LoadSettings(fsys afero.Fs, path string) (*Settings, error) {
	s := &Settings{}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if len(s.Indicators) > 0 {
		if err := indicator.Validate(s.Indicators); err != nil {
			return nil, fmt.Errorf("settings %s: %w", path, err)
		}
	}
	if s.FrameInterval < 0 {
		return nil, fmt.Errorf("settings %s: negative frame_interval", path)
	}
	return s, nil
}

// IndicatorConfigs returns the configured indicators or the defaults.
func (s *Settings) IndicatorConfigs() []indicator.Config {
	if len(s.Indicators) == 0 {
		return indicator.DefaultConfigs()
	}
	return append([]indicator.Config(nil), s.Indicators...)
}

// Style applies the settings over render.DefaultStyle.
func (s *Settings) Style() (render.Style, error) {
	st := render.DefaultStyle()
	if s.Palette != "" {
		p, err := render.LookupPalette(s.Palette)
		if err != nil {
			return st, err
		}
		st.Palette = p
	}
	if s.Layers != nil {
		st.Layers = *s.Layers
	}
	if s.GridRows > 0 {
		st.GridRows = s.GridRows
	}
	if s.GridCols > 0 {
		st.GridCols = s.GridCols
	}
	if s.VolumeHeight != nil && *s.VolumeHeight >= 0 {
		st.VolumeHeight = *s.VolumeHeight
	}
	if s.PriceLabels > 0 {
		st.PriceLabels = s.PriceLabels
	}
	if s.FontSize > 0 {
		st.FontSize = s.FontSize
	}
	return st, nil
}
