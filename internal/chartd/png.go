package chartd

import (
	"fmt"
	"io"

	"trading-chartv1/internal/render"
)

// WritePNG composes f onto a raster surface and encodes it. Layer errors do
// not stop the encode; they are returned alongside a complete image.
func WritePNG(w io.Writer, comp *render.Compositor, f *render.Frame) (layerErr, err error) {
	surf, err := render.NewPNGSurface(int(f.Layout.Width), int(f.Layout.Height))
	if err != nil {
		return nil, err
	}
	layerErr = comp.Compose(f, surf)
	if err := surf.Encode(w); err != nil {
		return layerErr, fmt.Errorf("encode png: %w", err)
	}
	return layerErr, nil
}
