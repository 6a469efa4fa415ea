package chartd

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trading-chartv1/internal/chart"
	"trading-chartv1/internal/id"
	"trading-chartv1/internal/indicator"
	"trading-chartv1/internal/logger"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/render"
	"trading-chartv1/internal/scheduler"
	"trading-chartv1/internal/viewport"
)

// API exposes one chart session over HTTP.
type API struct {
	sess  *chart.Session
	sched *scheduler.Scheduler
	comp  *render.Compositor
	log   *slog.Logger
}

// NewAPI wires the handlers. sched may be nil, in which case frame
// endpoints snapshot on demand.
func NewAPI(sess *chart.Session, sched *scheduler.Scheduler, comp *render.Compositor, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{sess: sess, sched: sched, comp: comp, log: logger.With(slog.String("component", "api"))}
}

// Handler returns the route table.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/state", a.state)
	mux.HandleFunc("GET /api/candles", a.candles)
	mux.HandleFunc("POST /api/timeframe", a.setTimeframe)
	mux.HandleFunc("POST /api/instrument", a.setInstrument)

	mux.HandleFunc("POST /api/viewport/zoom", a.zoom)
	mux.HandleFunc("POST /api/viewport/pan", a.pan)
	mux.HandleFunc("POST /api/viewport/end", a.endGesture)
	mux.HandleFunc("POST /api/viewport/reset", a.resetViewport)
	mux.HandleFunc("POST /api/viewport/resize", a.resize)

	mux.HandleFunc("GET /api/query/price", a.queryPrice)
	mux.HandleFunc("GET /api/query/candle", a.queryCandle)
	mux.HandleFunc("PUT /api/pointer", a.setPointer)
	mux.HandleFunc("DELETE /api/pointer", a.clearPointer)

	mux.HandleFunc("GET /api/orders", a.getOrders)
	mux.HandleFunc("PUT /api/orders", a.putOrders)
	mux.HandleFunc("GET /api/signals", a.getSignals)
	mux.HandleFunc("PUT /api/signals", a.putSignals)
	mux.HandleFunc("GET /api/indicators", a.getIndicators)
	mux.HandleFunc("PUT /api/indicators", a.putIndicators)
	mux.HandleFunc("GET /api/style", a.getStyle)
	mux.HandleFunc("PUT /api/palette", a.putPalette)
	mux.HandleFunc("PUT /api/layers", a.putLayers)

	mux.HandleFunc("GET /api/frame.json", a.frameJSON)
	mux.HandleFunc("GET /api/frame.png", a.framePNG)
	mux.HandleFunc("GET /api/stream", a.stream)
	return a.trace(mux)
}

// trace tags each request with a trace id and sets CORS headers.
func (a *API) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := r.Header.Get("X-Request-ID")
		if tid == "" {
			tid = id.WithPrefix("req")
		}
		ctx := logger.WithTraceID(r.Context(), tid)
		w.Header().Set("X-Request-ID", tid)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		a.log.Debug("request", append(logger.LogWithTrace(ctx),
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)))...)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON: "+err.Error()))
		return false
	}
	return true
}

func floatParam(r *http.Request, name string) (float64, error) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return 0, errors.New("query parameter " + name + " must be a number")
	}
	return v, nil
}

// ── Session ──

type stateResponse struct {
	Session    string             `json:"session"`
	StartedAt  time.Time          `json:"started_at"`
	Symbol     string             `json:"symbol"`
	Timeframe  model.Timeframe    `json:"timeframe"`
	LoadState  string             `json:"load_state"`
	LoadError  string             `json:"load_error,omitempty"`
	Candles    int                `json:"candles"`
	Instrument model.Instrument   `json:"instrument"`
	Committed  viewport.Transform `json:"committed"`
	Proposed   viewport.Transform `json:"proposed"`
	Frames     uint64             `json:"frames"`
	RenderP50  float64            `json:"render_p50_ms"`
	RenderP95  float64            `json:"render_p95_ms"`
	RenderP99  float64            `json:"render_p99_ms"`
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func (a *API) state(w http.ResponseWriter, _ *http.Request) {
	st, err := a.sess.LoadState()
	key := a.sess.Key()
	committed, proposed := a.sess.Transform()
	started, _ := id.Time(a.sess.ID())
	resp := stateResponse{
		Session:    a.sess.ID(),
		StartedAt:  started,
		Symbol:     key.Symbol,
		Timeframe:  key.Timeframe,
		LoadState:  st.String(),
		Candles:    a.sess.Len(),
		Instrument: a.sess.Instrument(),
		Committed:  committed,
		Proposed:   proposed,
	}
	if err != nil {
		resp.LoadError = err.Error()
	}
	if a.sched != nil {
		resp.Frames = a.sched.Frames()
		fs := a.sched.FrameStats()
		resp.RenderP50, resp.RenderP95, resp.RenderP99 = ms(fs.P50), ms(fs.P95), ms(fs.P99)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) candles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sess.Candles())
}

func (a *API) setTimeframe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timeframe string `json:"timeframe"`
	}
	if !decode(w, r, &req) {
		return
	}
	tf, err := model.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	started, err := a.sess.SetTimeframe(r.Context(), tf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": started, "timeframe": tf})
}

func (a *API) setInstrument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if !decode(w, r, &req) {
		return
	}
	started, err := a.sess.SetInstrument(r.Context(), strings.ToUpper(strings.TrimSpace(req.Symbol)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": started, "symbol": a.sess.Key().Symbol})
}

// ── Viewport ──

func (a *API) transform(w http.ResponseWriter) {
	committed, proposed := a.sess.Transform()
	writeJSON(w, http.StatusOK, map[string]viewport.Transform{"committed": committed, "proposed": proposed})
}

func (a *API) zoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Zoom   *float64 `json:"zoom"`
		Factor *float64 `json:"factor"`
	}
	if !decode(w, r, &req) {
		return
	}
	switch {
	case req.Zoom != nil:
		a.sess.SetZoom(*req.Zoom)
	case req.Factor != nil:
		a.sess.ZoomBy(*req.Factor)
	default:
		writeError(w, http.StatusBadRequest, errors.New("zoom or factor required"))
		return
	}
	a.transform(w)
}

func (a *API) pan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DX float64 `json:"dx"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.sess.Pan(req.DX)
	a.transform(w)
}

func (a *API) endGesture(w http.ResponseWriter, _ *http.Request) {
	a.sess.EndGesture()
	a.transform(w)
}

func (a *API) resetViewport(w http.ResponseWriter, _ *http.Request) {
	a.sess.ResetViewport()
	a.transform(w)
}

func (a *API) resize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.sess.Resize(req.Width, req.Height); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.transform(w)
}

// ── Queries ──

func (a *API) queryPrice(w http.ResponseWriter, r *http.Request) {
	y, err := floatParam(r, "y")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, ok := a.sess.QueryPriceAt(y)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no price scale"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"price": price})
}

func (a *API) queryCandle(w http.ResponseWriter, r *http.Request) {
	x, err := floatParam(r, "x")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, idx, ok := a.sess.QueryCandleAt(x)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no candle at x"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": idx, "candle": c})
}

func (a *API) setPointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !decode(w, r, &req) {
		return
	}
	a.sess.SetPointer(req.X, req.Y)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) clearPointer(w http.ResponseWriter, _ *http.Request) {
	a.sess.ClearPointer()
	w.WriteHeader(http.StatusNoContent)
}

// ── Annotations ──

func (a *API) getOrders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sess.Orders())
}

func (a *API) putOrders(w http.ResponseWriter, r *http.Request) {
	var orders []model.OrderAnnotation
	if !decode(w, r, &orders) {
		return
	}
	for i := range orders {
		if orders[i].ID == "" {
			orders[i].ID = id.WithPrefix("ord")
		}
	}
	a.sess.SetOrders(orders)
	writeJSON(w, http.StatusOK, a.sess.Orders())
}

func (a *API) getSignals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sess.Signals())
}

func (a *API) putSignals(w http.ResponseWriter, r *http.Request) {
	var signals []model.Signal
	if !decode(w, r, &signals) {
		return
	}
	for i := range signals {
		if signals[i].ID == "" {
			signals[i].ID = id.WithPrefix("sig")
		}
	}
	a.sess.SetSignals(signals)
	writeJSON(w, http.StatusOK, a.sess.Signals())
}

// ── Indicators & style ──

// getIndicators lists the configured set; ?values=1 adds the computed series.
func (a *API) getIndicators(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("values") != "" {
		writeJSON(w, http.StatusOK, a.sess.Indicators())
		return
	}
	writeJSON(w, http.StatusOK, a.sess.IndicatorConfigs())
}

func (a *API) putIndicators(w http.ResponseWriter, r *http.Request) {
	var configs []indicator.Config
	if !decode(w, r, &configs) {
		return
	}
	for i := range configs {
		configs[i].Type = strings.ToUpper(configs[i].Type)
	}
	if err := a.sess.SetIndicators(configs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (a *API) getStyle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"style": a.sess.Style(), "palettes": render.PaletteNames()})
}

func (a *API) putPalette(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.sess.SetPalette(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sess.Style())
}

func (a *API) putLayers(w http.ResponseWriter, r *http.Request) {
	var layers render.Layers
	if !decode(w, r, &layers) {
		return
	}
	a.sess.SetLayers(layers)
	writeJSON(w, http.StatusOK, a.sess.Style())
}

// ── Frames ──

type frameResponse struct {
	Frame  *render.Frame `json:"frame"`
	Error  string        `json:"error,omitempty"`
	TookMs float64       `json:"took_ms"`
}

// latest returns the scheduler's newest frame, snapshotting if none exists.
func (a *API) latest() frameResponse {
	if a.sched != nil {
		if out := a.sched.Latest(); out != nil {
			resp := frameResponse{Frame: out.Frame, TookMs: ms(out.Took)}
			if out.Err != nil {
				resp.Error = out.Err.Error()
			}
			return resp
		}
	}
	return frameResponse{Frame: a.sess.Snapshot()}
}

func (a *API) frameJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.latest())
}

func (a *API) framePNG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	layerErr, err := WritePNG(&buf, a.comp, a.sess.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if layerErr != nil {
		a.log.Warn("png rendered with layer errors", append(logger.LogWithTrace(r.Context()),
			slog.String("err", layerErr.Error()))...)
		w.Header().Set("X-Layer-Errors", strings.ReplaceAll(layerErr.Error(), "\n", "; "))
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
