package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/kats/internal/contracts"
)

// olsFit 최소제곱 적합 결과 (예측 구간 계산용 (X'X)^-1 포함)
type olsFit struct {
	beta   *mat.VecDense
	xtxInv *mat.Dense
	sigma  float64
	dof    int
}

func fitOLS(x *mat.Dense, y []float64) (*olsFit, error) {
	n, p := x.Dims()
	if n <= p {
		return nil, fmt.Errorf("ols with %d regressors needs more than %d points: %w", p, n, contracts.ErrInsufficientData)
	}

	yv := mat.NewVecDense(n, y)
	var beta mat.VecDense
	if err := beta.SolveVec(x, yv); err != nil {
		return nil, fmt.Errorf("solve least squares: %w", err)
	}

	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("invert normal matrix: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	var sse float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		sse += r * r
	}
	dof := n - p

	return &olsFit{
		beta:   &beta,
		xtxInv: &inv,
		sigma:  math.Sqrt(sse / float64(dof)),
		dof:    dof,
	}, nil
}

// predict returns the point estimate and the standard error of a new observation at row.
func (f *olsFit) predict(row []float64) (float64, float64) {
	x0 := mat.NewVecDense(len(row), row)
	mean := mat.Dot(x0, f.beta)
	se := f.sigma * math.Sqrt(1+mat.Inner(x0, f.xtxInv, x0))
	return mean, se
}
