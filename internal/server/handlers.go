package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/descent"
	"github.com/njchilds90/descent/internal/store"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"presets": len(s.opts.Presets()),
	}
	if s.opts.Store != nil {
		if err := s.opts.Store.Ping(r.Context()); err != nil {
			body["status"] = "degraded"
			body["store"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Presets())
}

type compileRequest struct {
	Expr  string         `json:"expr"`
	Point *descent.Point `json:"point,omitempty"`
}

type evaluation struct {
	Point        descent.Point `json:"point"`
	Value        *float64      `json:"value"`
	GradientDX   *float64      `json:"grad_dx"`
	GradientDY   *float64      `json:"grad_dy"`
	GradientNorm *float64      `json:"grad_norm"`
}

type compileResponse struct {
	Symbolic   descent.Symbolic `json:"symbolic"`
	Evaluation *evaluation      `json:"evaluation,omitempty"`
}

func (s *Server) compile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	fn, err := descent.Compile(req.Expr)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := compileResponse{Symbolic: fn.Symbolic()}
	if req.Point != nil {
		ev := descent.Evaluate(fn, *req.Point)
		resp.Evaluation = &evaluation{
			Point:        ev.Point,
			Value:        finite(ev.Value),
			GradientDX:   finite(ev.Gradient.DX),
			GradientDY:   finite(ev.Gradient.DY),
			GradientNorm: finite(ev.GradientNorm()),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type simulateRequest struct {
	descent.Request
	Save bool `json:"save,omitempty"`
}

type simulateResponse struct {
	RunID string `json:"run_id,omitempty"`
	*descent.Result
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	req.Catalog = s.opts.Presets()
	req.Reference = s.opts.Reference
	res, err := descent.Simulate(r.Context(), req.Request)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := simulateResponse{Result: res}
	if req.Save && s.opts.Store != nil {
		run, err := s.opts.Store.Save(r.Context(), req.Preset, res)
		if err != nil {
			writeErr(w, err)
			return
		}
		resp.RunID = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type referenceRequest struct {
	Preset string          `json:"preset,omitempty"`
	Expr   string          `json:"expr,omitempty"`
	Region *descent.Region `json:"region,omitempty"`
	Start  *descent.Point  `json:"start,omitempty"`
	Seeds  []descent.Point `json:"seeds,omitempty"`
}

type referenceResponse struct {
	Reference *descent.OptimizationResult `json:"reference"`
	Message   string                      `json:"message"`
}

func (s *Server) reference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	ref, err := descent.Locate(descent.Request{
		Preset:    req.Preset,
		Expr:      req.Expr,
		Region:    req.Region,
		Start:     req.Start,
		Seeds:     req.Seeds,
		Catalog:   s.opts.Presets(),
		Reference: s.opts.Reference,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := referenceResponse{Reference: ref, Message: ref.Describe()}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) tool(w http.ResponseWriter, r *http.Request) {
	var req descent.ToolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	resp := s.tools.Handle(r.Context(), req)
	status := http.StatusOK
	if resp.Error != "" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *Server) toolSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, descent.ToolSpec())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.opts.Store.List(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.opts.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) annotateRun(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.opts.Store.Annotate(r.Context(), id, req.Note); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "note": req.Note})
}

// finite returns nil for NaN and infinities, which encoding/json rejects.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

const (
	defaultSurfaceSamples = 41
	maxSurfaceSamples     = 201
)

type surfaceRequest struct {
	Preset string          `json:"preset,omitempty"`
	Expr   string          `json:"expr,omitempty"`
	Region *descent.Region `json:"region,omitempty"`
	// Samples per axis.
	N        int  `json:"n,omitempty"`
	Gradient bool `json:"gradient,omitempty"`
}

// surfaceResponse is row-major: Z[i][j] is f(XS[j], YS[i]).
type surfaceResponse struct {
	Region descent.Region `json:"region"`
	XS     []float64      `json:"xs"`
	YS     []float64      `json:"ys"`
	Z      [][]*float64   `json:"z"`
	DX     [][]*float64   `json:"dx,omitempty"`
	DY     [][]*float64   `json:"dy,omitempty"`
}

// surface samples f on a regular mesh over the region so clients can draw
// the landscape the path walks on.
func (s *Server) surface(w http.ResponseWriter, r *http.Request) {
	var req surfaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.N == 0 {
		req.N = defaultSurfaceSamples
	}
	if req.N < 2 || req.N > maxSurfaceSamples {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("n must be between 2 and %d", maxSurfaceSamples))
		return
	}
	expr, region, _, _, err := descent.Request{
		Preset:  req.Preset,
		Expr:    req.Expr,
		Region:  req.Region,
		Catalog: s.opts.Presets(),
	}.Resolve()
	if err != nil {
		writeErr(w, err)
		return
	}
	fn, err := descent.Compile(expr)
	if err != nil {
		writeErr(w, err)
		return
	}

	xs, ys := region.Linspace(req.N)
	resp := surfaceResponse{Region: region, XS: xs, YS: ys, Z: rows(fn.Grid(xs, ys))}
	if req.Gradient {
		dx, dy := fn.GradientGrid(xs, ys)
		resp.DX, resp.DY = rows(dx), rows(dy)
	}
	writeJSON(w, http.StatusOK, resp)
}

func rows(m *mat.Dense) [][]*float64 {
	r, c := m.Dims()
	out := make([][]*float64, r)
	for i := range out {
		out[i] = make([]*float64, c)
		for j := range out[i] {
			out[i][j] = finite(m.At(i, j))
		}
	}
	return out
}
