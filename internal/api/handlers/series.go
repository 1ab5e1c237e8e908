package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/forecast"
	"github.com/wonny/kats/pkg/logger"
)

// ForecastService 핸들러가 쓰는 서비스 계약 (*forecast.Service)
type ForecastService interface {
	Run(ctx context.Context, req forecast.Request) (*forecast.Result, error)
	RunInline(ctx context.Context, series contracts.Series, cfg contracts.EnsembleConfig, steps int, fused bool) (*forecast.Result, error)
	ImportPoints(ctx context.Context, name string, series contracts.Series) error
	ListSeries(ctx context.Context) ([]string, error)
	Latest(ctx context.Context, series string) (*forecast.Run, error)
}

// PointInput JSON 관측치 (value 가 null 이면 결측)
type PointInput struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// toSeries 입력 포인트를 시간순 검증된 Series 로
func toSeries(points []PointInput) (contracts.Series, error) {
	out := make([]contracts.Point, len(points))
	for i, p := range points {
		if p.Time.IsZero() {
			return contracts.Series{}, fmt.Errorf("point %d: time is required: %w", i, contracts.ErrConfig)
		}
		v := math.NaN()
		if p.Value != nil {
			v = *p.Value
		}
		out[i] = contracts.Point{Time: p.Time, Value: v}
	}
	return contracts.NewSeries(out)
}

// SeriesHandler handles stored series endpoints
type SeriesHandler struct {
	service ForecastService
	logger  *logger.Logger
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(service ForecastService, log *logger.Logger) *SeriesHandler {
	return &SeriesHandler{service: service, logger: log}
}

// List returns stored series names
// GET /api/series
func (h *SeriesHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListSeries(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list series")
		respondError(w, http.StatusInternalServerError, "failed to list series")
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"series": names,
		"count":  len(names),
	})
}

// ImportPoints upserts points into a series
// POST /api/series/{name}/points
func (h *SeriesHandler) ImportPoints(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var body struct {
		Points []PointInput `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	series, err := toSeries(body.Points)
	if err != nil {
		respondError(w, statusOf(err), err.Error())
		return
	}

	if err := h.service.ImportPoints(r.Context(), name, series); err != nil {
		h.logger.WithError(err).WithField("series", name).Error("Failed to import points")
		respondError(w, statusOf(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"series":   name,
		"imported": series.Len(),
	})
}
