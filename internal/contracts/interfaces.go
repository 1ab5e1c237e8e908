package contracts

import "context"

// Model 예측 모델 (적합 전)
// ⭐ SSOT: 앙상블은 이 계약만 사용한다 (모델 내부 수학은 알지 못함)
type Model interface {
	Fit(ctx context.Context, series Series) (FittedModel, error)
}

// FittedModel 적합된 모델
type FittedModel interface {
	Predict(ctx context.Context, steps int) (*Forecast, error)
}

// SeriesStore 시계열 저장소
type SeriesStore interface {
	SaveSeries(ctx context.Context, name string, series Series) error
	LoadSeries(ctx context.Context, name string) (Series, error)
	ListSeries(ctx context.Context) ([]string, error)
}
