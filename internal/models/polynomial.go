package models

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/kats/internal/contracts"
)

// Polynomial 시간 인덱스에 대한 다항 회귀 (linear: 1차, quadratic: 2차)
type Polynomial struct {
	degree int
	alpha  float64
	log    zerolog.Logger
}

// NewLinear params: alpha (구간 유의수준, 기본 0.05)
func NewLinear(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	return &Polynomial{degree: 1, alpha: params.Float("alpha", DefaultAlpha), log: log}, nil
}

// NewQuadratic params: alpha (구간 유의수준, 기본 0.05)
func NewQuadratic(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	return &Polynomial{degree: 2, alpha: params.Float("alpha", DefaultAlpha), log: log}, nil
}

func (m *Polynomial) family() string {
	if m.degree == 1 {
		return FamilyLinear
	}
	return FamilyQuadratic
}

func (m *Polynomial) row(t float64) []float64 {
	row := make([]float64, m.degree+1)
	for k := range row {
		row[k] = math.Pow(t, float64(k))
	}
	return row
}

// Fit implements contracts.Model.
func (m *Polynomial) Fit(ctx context.Context, series contracts.Series) (contracts.FittedModel, error) {
	if err := checkFit(ctx, series, m.degree+3, m.family()); err != nil {
		return nil, err
	}

	n := series.Len()
	x := mat.NewDense(n, m.degree+1, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, m.row(float64(i)))
	}

	fit, err := fitOLS(x, series.Values())
	if err != nil {
		return nil, err
	}

	m.log.Debug().Int("points", n).Float64("sigma", fit.sigma).Msg("Polynomial model fitted")

	return &fittedPolynomial{model: m, fit: fit, horizon: newHorizon(series)}, nil
}

type fittedPolynomial struct {
	model   *Polynomial
	fit     *olsFit
	horizon horizon
}

func (f *fittedPolynomial) Predict(ctx context.Context, steps int) (*contracts.Forecast, error) {
	if err := checkPredict(ctx, steps); err != nil {
		return nil, err
	}

	q := studentQuantile(f.model.alpha, f.fit.dof)
	out := &contracts.Forecast{
		Time:  f.horizon.times(steps),
		Fcst:  make(contracts.Values, steps),
		Lower: make(contracts.Values, steps),
		Upper: make(contracts.Values, steps),
	}
	for h := 0; h < steps; h++ {
		mean, se := f.fit.predict(f.model.row(float64(f.horizon.n + h)))
		out.Fcst[h] = mean
		out.Lower[h] = mean - q*se
		out.Upper[h] = mean + q*se
	}
	return out, nil
}
