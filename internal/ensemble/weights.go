package ensemble

import (
	"fmt"
	"math"

	"github.com/wonny/kats/internal/contracts"
)

// epsilon float64 머신 엡실론 (오차 0 일 때 0 나눗셈 방지)
const epsilon = 2.220446049250313e-16

// WeightsFromErrors 역오차 정규화
// inv[m] = 1/(err[m]+ε), weight[m] = inv[m] / Σ inv
func WeightsFromErrors(errs map[string]float64) (contracts.Weights, error) {
	if len(errs) == 0 {
		return nil, fmt.Errorf("no backtest errors to weight: %w", contracts.ErrPrecondition)
	}

	inverse := make(map[string]float64, len(errs))
	var total float64
	for model, e := range errs {
		if math.IsNaN(e) || e < 0 {
			return nil, fmt.Errorf("model %s backtest error %v: %w", model, e, contracts.ErrPrecondition)
		}
		inverse[model] = 1 / (e + epsilon)
		total += inverse[model]
	}

	if total == 0 || math.IsInf(total, 0) {
		return nil, fmt.Errorf("inverse error sum %v cannot be normalized: %w", total, contracts.ErrPrecondition)
	}

	weights := make(contracts.Weights, len(errs))
	for model, inv := range inverse {
		weights[model] = inv / total
	}
	return weights, nil
}
