package contracts

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Params 모델 파라미터 묶음 (YAML/JSON 에서 그대로 디코딩)
type Params map[string]float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Float returns p[key] or def.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok && !math.IsNaN(v) {
		return v
	}
	return def
}

// Int returns p[key] truncated to int, or def.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok && !math.IsNaN(v) {
		return int(v)
	}
	return def
}

// Bool treats any non-zero value as true.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok {
		return v != 0
	}
	return def
}

// ModelSpec 모델 키 + 파라미터
// Name 은 배치 내에서 유일해야 함 ("prophet", "prophet_smodel", "arima_fast" ...)
type ModelSpec struct {
	Name   string `json:"name" yaml:"name"`
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Clone returns an independent copy.
func (m ModelSpec) Clone() ModelSpec {
	return ModelSpec{Name: m.Name, Params: m.Params.Clone()}
}

// Family 모델 계열 키: 첫 "_" 앞부분 소문자
func (m ModelSpec) Family() string {
	return ModelFamily(m.Name)
}

// ModelFamily returns the lower-cased prefix of key before the first underscore.
func ModelFamily(key string) string {
	family, _, _ := strings.Cut(key, "_")
	return strings.ToLower(family)
}

// ValidateSpecs rejects empty or duplicate model keys.
func ValidateSpecs(specs []ModelSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no models configured: %w", ErrConfig)
	}
	seen := make(map[string]struct{}, len(specs))
	for i, s := range specs {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("model %d: empty name: %w", i, ErrConfig)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("model %q: duplicate name: %w", s.Name, ErrConfig)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Weights 모델별 가중치 (합 1)
type Weights map[string]float64

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// Keys returns model keys in sorted order.
func (w Weights) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
