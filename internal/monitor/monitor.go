// Package monitor provides debugging visualisations for the occupancy
// pipeline: a live scatter chart of the most recent decoded frame and PNG
// plots of the count history.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/occupancy.report/internal/mmwave"
	"github.com/banshee-data/occupancy.report/internal/units"
)

// FrameCache holds the most recent decoded frame so HTTP handlers can render
// it without touching the ingest goroutine.
type FrameCache struct {
	mu        sync.Mutex
	frame     *mmwave.Frame
	updatedAt time.Time
}

// Update stores the latest frame. The caller must not mutate the frame after
// handing it over.
func (fc *FrameCache) Update(frame *mmwave.Frame) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.frame = frame
	fc.updatedAt = time.Now()
}

// Latest returns the most recent frame and its arrival time, or nil when no
// frame has been decoded yet.
func (fc *FrameCache) Latest() (*mmwave.Frame, time.Time) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.frame, fc.updatedAt
}

// WebServer serves the monitoring chart endpoints.
type WebServer struct {
	cache    *FrameCache
	deviceID string
}

func NewWebServer(cache *FrameCache, deviceID string) *WebServer {
	return &WebServer{cache: cache, deviceID: deviceID}
}

// RegisterRoutes attaches the chart handlers to the given mux.
func (ws *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/monitor/frame", ws.handleFrameChart)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleFrameChart renders a scatter plot (HTML) of the latest frame's point
// cloud and target positions using go-echarts. This is a debugging-only
// endpoint to visually inspect detections without a frontend.
func (ws *WebServer) handleFrameChart(w http.ResponseWriter, r *http.Request) {
	frame, updatedAt := ws.cache.Latest()
	if frame == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no frame decoded yet")
		return
	}

	pointData := make([]opts.ScatterData, 0)
	targetData := make([]opts.ScatterData, 0, len(frame.Targets))
	maxAbs := 0.0
	maxSNR := 0.0

	if frame.Points != nil {
		for i := 0; i < frame.Points.NumPoints(); i++ {
			x, y := units.PolarToCartesian(
				float64(frame.Points.Range[i]),
				float64(frame.Points.Azimuth[i]),
			)
			if math.Abs(x) > maxAbs {
				maxAbs = math.Abs(x)
			}
			if math.Abs(y) > maxAbs {
				maxAbs = math.Abs(y)
			}
			snr := float64(frame.Points.SNR[i])
			if snr > maxSNR {
				maxSNR = snr
			}
			pointData = append(pointData, opts.ScatterData{Value: []interface{}{x, y, snr}})
		}
	}

	for _, target := range frame.Targets {
		x := float64(target.PosX)
		y := float64(target.PosY)
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		targetData = append(targetData, opts.ScatterData{Value: []interface{}{x, y}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxSNR == 0 {
		maxSNR = 1
	}

	subtitle := fmt.Sprintf(
		"device=%s frame=%d points=%d targets=%d ts=%s",
		ws.deviceID, frame.Header.FrameNumber,
		len(pointData), len(targetData),
		updatedAt.UTC().Format(time.RFC3339),
	)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "mmWave Frame", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Latest Frame", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSNR),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("points", pointData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	scatter.AddSeries("targets", targetData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}),
	)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
