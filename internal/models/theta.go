package models

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/decomposition"
)

// Theta 표준 Theta 방법: 단순 지수평활 + 선형 추세 기울기의 절반
// params: m (계절 주기, 1 = 계절 조정 없음), alpha (구간 유의수준)
type Theta struct {
	period int
	alpha  float64
	log    zerolog.Logger
}

// NewTheta 기본 m=1
func NewTheta(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	return &Theta{
		period: params.Int("m", 1),
		alpha:  params.Float("alpha", DefaultAlpha),
		log:    log,
	}, nil
}

// Fit implements contracts.Model.
func (m *Theta) Fit(ctx context.Context, series contracts.Series) (contracts.FittedModel, error) {
	if err := checkFit(ctx, series, 4, FamilyTheta); err != nil {
		return nil, err
	}

	y := series.Values()
	var seasonIndex []float64

	// 주기가 주어지고 값이 모두 양수면 승법 분해로 계절 조정
	if m.period > 1 && series.Len() >= 2*m.period {
		comp, err := decomposition.NewDecomposer(m.log).Decompose(series, contracts.DecompositionMultiplicative, m.period)
		if err == nil {
			y = comp.Residual.Values()
			seasonIndex = comp.Index
		} else {
			m.log.Debug().Err(err).Msg("Seasonal adjustment skipped")
		}
	}

	x := indexGrid(len(y), 0)
	_, slope := stat.LinearRegression(x, y, nil, false)

	ses := bestSES(y)

	m.log.Debug().Float64("ses_alpha", ses.alpha).Float64("drift", slope/2).Msg("Theta fitted")

	return &fittedTheta{
		model:       m,
		ses:         ses,
		drift:       slope / 2,
		seasonIndex: seasonIndex,
		horizon:     newHorizon(series),
	}, nil
}

type fittedTheta struct {
	model       *Theta
	ses         sesFit
	drift       float64
	seasonIndex []float64
	horizon     horizon
}

func (f *fittedTheta) Predict(ctx context.Context, steps int) (*contracts.Forecast, error) {
	if err := checkPredict(ctx, steps); err != nil {
		return nil, err
	}

	a := f.ses.alpha
	n := float64(f.horizon.n)
	z := normalQuantile(f.model.alpha)

	out := &contracts.Forecast{
		Time:  f.horizon.times(steps),
		Fcst:  make(contracts.Values, steps),
		Lower: make(contracts.Values, steps),
		Upper: make(contracts.Values, steps),
	}
	for h := 1; h <= steps; h++ {
		v := f.ses.level + f.drift*(float64(h-1)+1/a-math.Pow(1-a, n)/a)
		se := f.ses.sigma * math.Sqrt(1+float64(h-1)*a*a)
		factor := 1.0
		if len(f.seasonIndex) > 0 {
			factor = f.seasonIndex[(f.horizon.n+h-1)%len(f.seasonIndex)]
		}
		out.Fcst[h-1] = v * factor
		out.Lower[h-1] = (v - z*se) * factor
		out.Upper[h-1] = (v + z*se) * factor
	}
	return out, nil
}

// sesFit 단순 지수평활 적합 결과
type sesFit struct {
	alpha float64
	level float64
	sigma float64
}

// bestSES alpha 를 격자 탐색해 1-step SSE 최소화
func bestSES(y []float64) sesFit {
	best := sesFit{sigma: math.Inf(1)}
	for a := 0.05; a < 1.0; a += 0.05 {
		level := y[0]
		var sse float64
		for t := 1; t < len(y); t++ {
			e := y[t] - level
			sse += e * e
			level += a * e
		}
		sigma := math.Sqrt(sse / float64(len(y)-1))
		if sigma < best.sigma {
			best = sesFit{alpha: a, level: level, sigma: sigma}
		}
	}
	return best
}
