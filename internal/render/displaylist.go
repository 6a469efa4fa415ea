package render

// Op is one recorded drawing call.
type Op struct {
	Layer  string     `json:"layer"`
	Kind   string     `json:"kind"` // fill, line, rect, polyline, marker, text
	Points []Point    `json:"points,omitempty"`
	W      float64    `json:"w,omitempty"`
	H      float64    `json:"h,omitempty"`
	R      float64    `json:"r,omitempty"`
	Color  Color      `json:"color"`
	Stroke *Stroke    `json:"stroke,omitempty"`
	Text   string     `json:"text,omitempty"`
	Style  *TextStyle `json:"style,omitempty"`
}

// LayerMarker is implemented by surfaces that want to know which layer is drawing.
type LayerMarker interface {
	BeginLayer(name string)
}

// DisplayList records drawing calls instead of rasterizing them. It backs
// tests and the JSON frame export.
type DisplayList struct {
	W, H  float64
	Ops   []Op
	layer string
}

// NewDisplayList creates an empty list of the given size.
func NewDisplayList(w, h float64) *DisplayList {
	return &DisplayList{W: w, H: h}
}

func (d *DisplayList) BeginLayer(name string) { d.layer = name }

func (d *DisplayList) Size() (float64, float64) { return d.W, d.H }

func (d *DisplayList) Fill(bg Color) {
	d.Ops = append(d.Ops, Op{Layer: "background", Kind: "fill", Color: bg, W: d.W, H: d.H})
}

func (d *DisplayList) Line(x1, y1, x2, y2 float64, s Stroke) {
	d.Ops = append(d.Ops, Op{Layer: d.layer, Kind: "line", Points: []Point{{x1, y1}, {x2, y2}}, Color: s.Color, Stroke: &s})
}

func (d *DisplayList) Rect(x, y, w, h float64, fill Color) {
	d.Ops = append(d.Ops, Op{Layer: d.layer, Kind: "rect", Points: []Point{{x, y}}, W: w, H: h, Color: fill})
}

func (d *DisplayList) Polyline(pts []Point, s Stroke) {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	d.Ops = append(d.Ops, Op{Layer: d.layer, Kind: "polyline", Points: cp, Color: s.Color, Stroke: &s})
}

func (d *DisplayList) Marker(x, y, r float64, fill Color) {
	d.Ops = append(d.Ops, Op{Layer: d.layer, Kind: "marker", Points: []Point{{x, y}}, R: r, Color: fill})
}

func (d *DisplayList) Text(x, y float64, text string, st TextStyle) {
	d.Ops = append(d.Ops, Op{Layer: d.layer, Kind: "text", Points: []Point{{x, y}}, Text: text, Color: st.Color, Style: &st})
}

// ByLayer returns the ops recorded for one layer.
func (d *DisplayList) ByLayer(name string) []Op {
	var out []Op
	for _, op := range d.Ops {
		if op.Layer == name {
			out = append(out, op)
		}
	}
	return out
}

// LayerOrder returns layer names in the order they first drew.
func (d *DisplayList) LayerOrder() []string {
	var out []string
	seen := map[string]bool{}
	for _, op := range d.Ops {
		if !seen[op.Layer] {
			seen[op.Layer] = true
			out = append(out, op.Layer)
		}
	}
	return out
}
