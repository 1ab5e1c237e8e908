package contracts

// 앙상블 파이프라인 Stage 정의 (SSOT)
// 모든 로그, DB row 에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   Validated → Fitted → Predicted → Aggregated
//   (Forecast 경로: Validated → Predicted → Aggregated)

// Stage represents an ensemble pipeline stage
type Stage string

const (
	// StageValidated 설정/시계열 검증 완료
	// 책임: 집계 방식, 계절 주기, 모델 키 검증
	StageValidated Stage = "VALIDATED"

	// StageFitted 계절성 감지, 분해, 모델 적합 완료
	StageFitted Stage = "FITTED"

	// StagePredicted 모델별 예측 + 재계절화 완료
	StagePredicted Stage = "PREDICTED"

	// StageAggregated 합의 예측 산출 완료
	StageAggregated Stage = "AGGREGATED"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageValidated:
		return "설정 검증"
	case StageFitted:
		return "모델 적합"
	case StagePredicted:
		return "모델별 예측"
	case StageAggregated:
		return "합의 예측 집계"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{StageValidated, StageFitted, StagePredicted, StageAggregated}
}

// StageResult represents the result of a pipeline stage execution
type StageResult struct {
	Stage    Stage                  `json:"stage"`
	Models   int                    `json:"models"`
	Duration int64                  `json:"duration_ms"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
