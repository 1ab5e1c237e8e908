package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/forecast"
	"github.com/wonny/kats/pkg/config"
	"github.com/wonny/kats/pkg/logger"
)

// fakeService 요청 기록용 서비스
type fakeService struct {
	lastRequest forecast.Request
	lastSteps   int
	lastCfg     contracts.EnsembleConfig
	imported    map[string]int
	err         error
}

func (f *fakeService) Run(_ context.Context, req forecast.Request) (*forecast.Result, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.Result{Series: req.Series, RunID: 1, Consensus: consensusOf(req.Steps)}, nil
}

func (f *fakeService) RunInline(_ context.Context, s contracts.Series, cfg contracts.EnsembleConfig, steps int, _ bool) (*forecast.Result, error) {
	f.lastSteps = steps
	f.lastCfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.Result{Consensus: consensusOf(steps)}, nil
}

func (f *fakeService) ImportPoints(_ context.Context, name string, s contracts.Series) error {
	if f.err != nil {
		return f.err
	}
	if f.imported == nil {
		f.imported = map[string]int{}
	}
	f.imported[name] = s.Len()
	return nil
}

func (f *fakeService) ListSeries(context.Context) ([]string, error) {
	return []string{"sales"}, f.err
}

func (f *fakeService) Latest(_ context.Context, series string) (*forecast.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.Run{ID: 9, Series: series, Consensus: consensusOf(2)}, nil
}

func consensusOf(steps int) *contracts.Consensus {
	c := &contracts.Consensus{Mode: contracts.AggregationMedian}
	for i := 0; i < steps; i++ {
		c.Time = append(c.Time, time.Date(2024, 2, 1+i, 0, 0, 0, 0, time.UTC))
		c.Fcst = append(c.Fcst, float64(i))
		c.Lower = append(c.Lower, float64(i)-1)
		c.Upper = append(c.Upper, float64(i)+1)
	}
	return c
}

func newRouter(svc *fakeService) *mux.Router {
	log := logger.New(&config.Config{Env: "development", LogLevel: "off"})
	fh := NewForecastHandler(svc, 30, log)
	sh := NewSeriesHandler(svc, log)

	r := mux.NewRouter()
	r.HandleFunc("/api/forecast", fh.Forecast).Methods("POST")
	r.HandleFunc("/api/series", sh.List).Methods("GET")
	r.HandleFunc("/api/series/{name}/points", sh.ImportPoints).Methods("POST")
	r.HandleFunc("/api/series/{name}/forecast", fh.SeriesForecast).Methods("GET")
	r.HandleFunc("/api/series/{name}/forecast/latest", fh.LatestForecast).Methods("GET")
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const pointsJSON = `[
	{"time": "2024-01-01T00:00:00Z", "value": 1},
	{"time": "2024-01-02T00:00:00Z", "value": null},
	{"time": "2024-01-03T00:00:00Z", "value": 3}
]`

func TestForecast_Inline(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newRouter(svc), "POST", "/api/forecast",
		`{"points": `+pointsJSON+`, "config": {"aggregation": "median", "models": [{"name": "linear"}]}, "steps": 2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.lastSteps)
	assert.Equal(t, "median", svc.lastCfg.Aggregation)

	var res forecast.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Consensus.Len())
}

func TestForecast_InlineDefaultsSteps(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newRouter(svc), "POST", "/api/forecast", `{"points": `+pointsJSON+`}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, svc.lastSteps)
}

func TestForecast_InlineBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"points": [`},
		{"unknown field", `{"pionts": []}`},
		{"negative steps", `{"points": ` + pointsJSON + `, "steps": -1}`},
		{"unordered", `{"points": [{"time": "2024-01-02T00:00:00Z", "value": 1}, {"time": "2024-01-01T00:00:00Z", "value": 2}]}`},
		{"missing time", `{"points": [{"value": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newRouter(&fakeService{}), "POST", "/api/forecast", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestForecast_ServiceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", contracts.ErrMissingInterval), http.StatusBadRequest},
		{fmt.Errorf("x: %w", contracts.ErrUnknownModel), http.StatusBadRequest},
		{fmt.Errorf("x: %w", contracts.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := do(t, newRouter(&fakeService{err: tt.err}), "GET", "/api/series/sales/forecast", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSeriesForecast_Query(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	rec := do(t, h, "GET", "/api/series/sales/forecast?steps=14&fused=true&refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, forecast.Request{Series: "sales", Steps: 14, Fused: true, NoCache: true}, svc.lastRequest)

	rec = do(t, h, "GET", "/api/series/sales/forecast?steps=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "GET", "/api/series/sales/forecast/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run forecast.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, int64(9), run.ID)
}

func TestSeries_ListAndImport(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	rec := do(t, h, "GET", "/api/series", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"series": ["sales"], "count": 1}`, rec.Body.String())

	rec = do(t, h, "POST", "/api/series/sales/points", `{"points": `+pointsJSON+`}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, svc.imported["sales"])

	rec = do(t, h, "POST", "/api/series/sales/points", `{"points": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
