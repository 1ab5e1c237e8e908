// Package modelspec loads ensemble model specs from YAML files.
package modelspec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/kats/internal/contracts"
)

// File 모델 스펙 YAML 파일 구조
type File struct {
	Meta     Meta                     `yaml:"meta"`
	Ensemble contracts.EnsembleConfig `yaml:"ensemble"`
}

// Meta 스펙 식별 정보
type Meta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Load reads a YAML file and returns the spec with its raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*File, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return f, data, nil
}

// Parse decodes and validates YAML bytes
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model spec: %v: %w", err, contracts.ErrConfig)
	}

	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate 구조 검증 (모델 계열 존재 여부는 레지스트리가 확인)
func Validate(f *File) error {
	if f.Meta.Name == "" {
		return fmt.Errorf("meta.name is required: %w", contracts.ErrConfig)
	}
	if _, ok := contracts.ParseAggregationMode(f.Ensemble.Aggregation); !ok {
		return fmt.Errorf("ensemble.aggregation %q: %w", f.Ensemble.Aggregation, contracts.ErrConfig)
	}
	if f.Ensemble.SeasonalityLength < 0 {
		return fmt.Errorf("ensemble.seasonality_length must not be negative: %w", contracts.ErrConfig)
	}
	return contracts.ValidateSpecs(f.Ensemble.Models)
}

// Hash generates SHA256 hash of an ensemble config (canonical JSON)
// map 키는 encoding/json 이 정렬하므로 결정적
func Hash(cfg contracts.EnsembleConfig) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// ShortHash 캐시 키용 앞 12자리
func ShortHash(cfg contracts.EnsembleConfig) (string, error) {
	h, err := Hash(cfg)
	if err != nil {
		return "", err
	}
	return h[:12], nil
}
