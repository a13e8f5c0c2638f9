/*
handlers.go - HTTP API handlers for the measurement engines

ENDPOINTS:
  POST /api/v1/measure    Measure one contract at a target month
  POST /api/v1/batch      Measure many contracts through the worker pool
  POST /api/v1/incurred   Run the incurred-claims engine for a month
  GET  /healthz           Liveness
  GET  /metrics           Prometheus metrics

ERROR HANDLING:
  Errors are returned as JSON with the measurement error kind when known:
  - 400: InvalidInput, InvalidDateOrdering, malformed body
  - 404: MissingContract
  - 422: MissingAssumption
  - 500: anything else

Diagnostics never fail a request; they travel in the result body.
*/
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rgehrsitz/lrcm/internal/calculation"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
)

// Handler holds the engines the endpoints delegate to
type Handler struct {
	Engine   *calculation.MeasurementEngine
	Incurred *calculation.IncurredEngine
	Metrics  *Metrics
	Store    string // backend driver name reported by /healthz
}

// NewHandler creates a handler with a fresh metrics registry
func NewHandler(engine *calculation.MeasurementEngine, incurred *calculation.IncurredEngine) *Handler {
	return &Handler{
		Engine:   engine,
		Incurred: incurred,
		Metrics:  NewMetrics(),
	}
}

// Measure runs one contract measurement.
// POST /api/v1/measure
func (h *Handler) Measure(w http.ResponseWriter, r *http.Request) {
	var req MeasureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PolicyNo == "" {
		writeError(w, http.StatusBadRequest, "policy_no is required", nil)
		return
	}
	if !dateutil.ValidMonth(req.TargetMonth) {
		writeError(w, http.StatusBadRequest, "target_month must be YYYYMM", nil)
		return
	}

	started := time.Now()
	result, err := h.Engine.Measure(r.Context(), req.Key(), req.TargetMonth)
	var ds domain.Diagnostics
	if result != nil {
		ds = result.Diagnostics
	}
	h.Metrics.observe("measure", started, err, ds)
	if err != nil {
		writeMeasurementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Batch measures a set of contracts.
// POST /api/v1/batch
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !dateutil.ValidMonth(req.TargetMonth) {
		writeError(w, http.StatusBadRequest, "target_month must be YYYYMM", nil)
		return
	}

	keys := req.Contracts
	if len(keys) == 0 {
		all, err := h.Engine.Source.ContractKeys(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
			return
		}
		keys = all
	}
	jobs := make([]calculation.BatchJob, len(keys))
	for i, k := range keys {
		jobs[i] = calculation.BatchJob{Key: k.Normalize(), TargetMonth: req.TargetMonth}
	}

	runner := calculation.NewBatchRunner(h.Engine)
	runner.OnItem = func(item calculation.BatchItem) {
		var ds domain.Diagnostics
		if item.Result != nil {
			ds = item.Result.Diagnostics
		}
		h.Metrics.count("measure", item.Err, ds)
	}
	started := time.Now()
	result := runner.Run(r.Context(), jobs)
	h.Metrics.observe("batch", started, nil, nil)
	writeJSON(w, http.StatusOK, result)
}

// IncurredClaims runs the incurred-claims engine.
// POST /api/v1/incurred
func (h *Handler) IncurredClaims(w http.ResponseWriter, r *http.Request) {
	var req IncurredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !dateutil.ValidMonth(req.Month) {
		writeError(w, http.StatusBadRequest, "month must be YYYYMM", nil)
		return
	}

	started := time.Now()
	result, err := h.Incurred.Measure(r.Context(), req.Month)
	var ds domain.Diagnostics
	if result != nil {
		ds = result.Diagnostics
	}
	h.Metrics.observe("incurred", started, err, ds)
	if err != nil {
		writeMeasurementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Store: h.Store})
}

func writeMeasurementError(w http.ResponseWriter, err error) {
	var me *domain.MeasurementError
	if !errors.As(err, &me) {
		writeError(w, http.StatusInternalServerError, "Measurement failed", err)
		return
	}

	status := http.StatusInternalServerError
	switch me.Kind {
	case domain.KindInvalidInput, domain.KindInvalidDateOrdering:
		status = http.StatusBadRequest
	case domain.KindMissingContract:
		status = http.StatusNotFound
	case domain.KindMissingAssumption:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ErrorResponse{Error: me.Error(), Kind: me.Kind, Details: me.Key})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
