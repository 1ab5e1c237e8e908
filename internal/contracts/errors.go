package contracts

import "errors"

// 에러 분류
// ⭐ SSOT: 모든 레이어는 fmt.Errorf("...: %w", err) 로 감싸고 호출자는 errors.Is 로 판별
var (
	// ErrConfig 설정 오류 (생성 시점에 즉시 실패)
	ErrConfig = errors.New("invalid configuration")

	// ErrPrecondition 파이프라인 진행 중 발견된 선행 조건 위반
	ErrPrecondition = errors.New("precondition failed")

	// ErrMissingInterval 가중 평균 집계에 신뢰구간이 없는 모델 포함
	ErrMissingInterval = errors.New("confidence interval required for weighted aggregation")

	// ErrInsufficientData 데이터 포인트 부족
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUnknownModel 등록되지 않은 모델 계열
	ErrUnknownModel = errors.New("unknown model family")

	// ErrUnknownMetric 지원하지 않는 오차 지표
	ErrUnknownMetric = errors.New("unknown error metric")

	// ErrNotFound 조회 대상 없음
	ErrNotFound = errors.New("not found")
)

// IsClientError reports whether err is caused by caller input rather than a failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrMissingInterval) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrUnknownMetric)
}
