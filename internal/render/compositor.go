package render

import (
	"errors"
	"fmt"
	"log/slog"
)

// Layer draws one overlay. Draw must only read the frame.
type Layer interface {
	Name() string
	Enabled(f *Frame) bool
	Draw(f *Frame, s Surface) error
}

// Compositor draws layers in a fixed order.
type Compositor struct {
	layers []Layer
	log    *slog.Logger

	// OnLayerError is called for every layer that fails (optional).
	OnLayerError func(layer string, err error)
}

// NewCompositor returns the standard stack:
// grid → candles → volume → indicators → orders → signals → crosshair.
func NewCompositor(logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		layers: []Layer{
			GridLayer{},
			CandleLayer{},
			VolumeLayer{},
			IndicatorLayer{},
			OrderLayer{},
			SignalLayer{},
			CrosshairLayer{},
		},
		log: logger.With(slog.String("component", "compositor")),
	}
}

// Layers returns the layer names in draw order.
func (c *Compositor) Layers() []string {
	out := make([]string, len(c.layers))
	for i, l := range c.layers {
		out[i] = l.Name()
	}
	return out
}

// Compose paints the background and then every enabled layer. Errors from
// individual layers are joined and returned after all layers have run.
func (c *Compositor) Compose(f *Frame, s Surface) error {
	s.Fill(f.Style.Palette.Background)

	var errs []error
	for _, l := range c.layers {
		if !l.Enabled(f) {
			continue
		}
		if m, ok := s.(LayerMarker); ok {
			m.BeginLayer(l.Name())
		}
		if err := drawLayer(l, f, s); err != nil {
			c.log.Warn("layer failed", slog.String("layer", l.Name()), slog.String("err", err.Error()))
			if c.OnLayerError != nil {
				c.OnLayerError(l.Name(), err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func drawLayer(l Layer, f *Frame, s Surface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.Draw(f, s)
}
