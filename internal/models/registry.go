// Package models holds the forecasting model families the ensemble can combine.
package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/internal/contracts"
)

// SeasonalSuffix 원 데이터(계절성 미제거)에 적합하는 복제 모델 접미사
const SeasonalSuffix = "_smodel"

// 모델 계열 키
const (
	FamilyARIMA       = "arima"
	FamilyHoltWinters = "holtwinters"
	FamilySARIMA      = "sarima"
	FamilyProphet     = "prophet"
	FamilyLinear      = "linear"
	FamilyQuadratic   = "quadratic"
	FamilyTheta       = "theta"
)

// Factory builds an unfitted model from a parameter bundle.
type Factory func(params contracts.Params, log zerolog.Logger) (contracts.Model, error)

type entry struct {
	factory         Factory
	seasonalCapable bool
}

// Registry 모델 키 → 생성자
// ⭐ SSOT: 계절성 대응 가능 모델 목록은 여기서만 관리
type Registry struct {
	entries map[string]entry
	log     zerolog.Logger
}

// NewRegistry returns a registry with every built-in family.
func NewRegistry(log zerolog.Logger) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
		log:     log.With().Str("component", "models.registry").Logger(),
	}
	r.Register(FamilyARIMA, NewARIMA, false)
	r.Register(FamilyHoltWinters, NewHoltWinters, false)
	r.Register(FamilySARIMA, NewSARIMA, false)
	r.Register(FamilyProphet, NewProphet, true)
	r.Register(FamilyLinear, NewLinear, false)
	r.Register(FamilyQuadratic, NewQuadratic, false)
	r.Register(FamilyTheta, NewTheta, true)
	return r
}

// Register adds or replaces a family.
func (r *Registry) Register(family string, factory Factory, seasonalCapable bool) {
	r.entries[strings.ToLower(family)] = entry{factory: factory, seasonalCapable: seasonalCapable}
}

// Families returns the registered family keys, sorted.
func (r *Registry) Families() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether key's family is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.entries[contracts.ModelFamily(key)]
	return ok
}

// IsSeasonalCapable reports whether key's family can be fitted on seasonal data directly.
func (r *Registry) IsSeasonalCapable(key string) bool {
	e, ok := r.entries[contracts.ModelFamily(key)]
	return ok && e.seasonalCapable
}

// New constructs the model for spec.
func (r *Registry) New(spec contracts.ModelSpec) (contracts.Model, error) {
	family := spec.Family()
	e, ok := r.entries[family]
	if !ok {
		return nil, fmt.Errorf("model %q (family %q): %w", spec.Name, family, contracts.ErrUnknownModel)
	}
	m, err := e.factory(spec.Params.Clone(), r.log.With().Str("model", spec.Name).Logger())
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", spec.Name, err)
	}
	return m, nil
}

// Validate checks that every spec names a registered family.
func (r *Registry) Validate(specs []contracts.ModelSpec) error {
	for _, s := range specs {
		if !r.Has(s.Name) {
			return fmt.Errorf("model %q: %w", s.Name, contracts.ErrUnknownModel)
		}
	}
	return nil
}

// SeasonalVariant 원 데이터용 복제 스펙 ("prophet" → "prophet_smodel")
func SeasonalVariant(spec contracts.ModelSpec) contracts.ModelSpec {
	return contracts.ModelSpec{Name: spec.Name + SeasonalSuffix, Params: spec.Params.Clone()}
}

// IsSeasonalVariant reports whether key carries the raw-data suffix.
func IsSeasonalVariant(key string) bool {
	return strings.HasSuffix(key, SeasonalSuffix)
}
