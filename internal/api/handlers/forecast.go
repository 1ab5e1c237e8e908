package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/forecast"
	"github.com/wonny/kats/pkg/logger"
)

const maxSteps = 10000

// ForecastHandler handles forecast API endpoints
// ⭐ SSOT: Forecast API 핸들러는 이 구조체에서만
type ForecastHandler struct {
	service      ForecastService
	defaultSteps int
	logger       *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(service ForecastService, defaultSteps int, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{
		service:      service,
		defaultSteps: defaultSteps,
		logger:       log,
	}
}

// ForecastRequest 즉석 예측 요청 본문
type ForecastRequest struct {
	Points []PointInput             `json:"points"`
	Config contracts.EnsembleConfig `json:"config"`
	Steps  int                      `json:"steps"`
	Fused  bool                     `json:"fused"`
}

// Forecast runs the ensemble on an inline series
// POST /api/forecast
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	steps := req.Steps
	if steps == 0 {
		steps = h.defaultSteps
	}
	if steps < 1 || steps > maxSteps {
		respondError(w, http.StatusBadRequest, "steps must be between 1 and 10000")
		return
	}

	series, err := toSeries(req.Points)
	if err != nil {
		respondError(w, statusOf(err), err.Error())
		return
	}

	result, err := h.service.RunInline(r.Context(), series, req.Config, steps, req.Fused)
	if err != nil {
		h.logger.WithError(err).WithField("points", series.Len()).Warn("Inline forecast failed")
		respondError(w, statusOf(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SeriesForecast runs (or serves cached) forecast for a stored series
// GET /api/series/{name}/forecast?steps=30&fused=true&refresh=true
func (h *ForecastHandler) SeriesForecast(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	q := r.URL.Query()

	steps := h.defaultSteps
	if s := q.Get("steps"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxSteps {
			respondError(w, http.StatusBadRequest, "steps must be between 1 and 10000")
			return
		}
		steps = n
	}

	result, err := h.service.Run(r.Context(), forecast.Request{
		Series:  name,
		Steps:   steps,
		Fused:   q.Get("fused") == "true",
		NoCache: q.Get("refresh") == "true",
	})
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("series", name).Error("Series forecast failed")
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// LatestForecast returns the most recent stored run
// GET /api/series/{name}/forecast/latest
func (h *ForecastHandler) LatestForecast(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	run, err := h.service.Latest(r.Context(), name)
	if err != nil {
		respondError(w, statusOf(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, run)
}
