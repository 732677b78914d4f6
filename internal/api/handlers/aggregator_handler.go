// Package handlers implements the REST handlers exposed over the
// aggregator's query surface: ranked top(n) pairs, clock-sync state,
// and health.
package handlers

import (
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"spreadmonitor/internal/aggregator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AggregatorHandler serves the read-only query surface backed by an
// *aggregator.Aggregator, plus the JWT-protected stop control.
type AggregatorHandler struct {
	agg         *aggregator.Aggregator
	defaultTopN int
}

// NewAggregatorHandler builds a handler bound to agg, using
// defaultTopN when the request omits ?n=.
func NewAggregatorHandler(agg *aggregator.Aggregator, defaultTopN int) *AggregatorHandler {
	if defaultTopN <= 0 {
		defaultTopN = 20
	}
	return &AggregatorHandler{agg: agg, defaultTopN: defaultTopN}
}

// ErrorResponse is the standard error envelope for this API.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// GetTopPairs handles GET /api/v1/pairs/top?n=20.
func (h *AggregatorHandler) GetTopPairs(w http.ResponseWriter, r *http.Request) {
	n := h.defaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid n query parameter")
			return
		}
		n = parsed
	}

	writeJSON(w, http.StatusOK, h.agg.Top(n))
}

// GetClocks handles GET /api/v1/clocks.
func (h *AggregatorHandler) GetClocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Clocks())
}

// GetHealth handles GET /api/v1/health.
func (h *AggregatorHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Health())
}

// PostStop handles POST /api/v1/control/stop (JWT-protected).
func (h *AggregatorHandler) PostStop(w http.ResponseWriter, r *http.Request) {
	if err := h.agg.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
