package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/pkg/config"
)

// Logger kats 공통 구조화 로거 (zerolog 래퍼)
// ⭐ SSOT: service=kats, env 필드는 여기서만 붙임
type Logger struct {
	zlog zerolog.Logger
}

// New creates a new Logger instance from config (stdout)
func New(cfg *config.Config) *Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a Logger writing to w
// ⭐ SSOT: zerolog 인스턴스는 여기서만 생성
// CLI 는 stderr 를 넘겨 stdout 을 결과 출력 전용으로 유지
func NewWithWriter(cfg *config.Config, w io.Writer) *Logger {
	output := w
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		// 로컬 개발용 사람이 읽는 출력
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	// 전역 레벨: LOG_LEVEL (off 면 테스트용 무음)
	level := parseLogLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "kats").
		Str("env", cfg.Env).
		Logger()

	return &Logger{zlog: zlog}
}

// parseLogLevel LOG_LEVEL 문자열을 zerolog.Level 로 (알 수 없으면 info)
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Info 단순 진행 메시지
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Warn 폴백/재시도 같은 복구 가능한 상황
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Error 실패한 예측/작업 기록
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// Infof printf 형식 진행 메시지 (serve 시작 정보 등)
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// WithField series, job 같은 문맥 필드를 붙인 자식 로거
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newLogger := l.zlog.With().Interface(key, value).Logger()
	return &Logger{zlog: newLogger}
}

// WithError err 를 "error" 필드로 붙인 자식 로거
func (l *Logger) WithError(err error) *Logger {
	newLogger := l.zlog.With().Err(err).Logger()
	return &Logger{zlog: newLogger}
}

// Component returns a zerolog.Logger tagged with a component name
// 도메인 패키지는 *Logger 대신 zerolog.Logger 를 받음
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog 내부 zerolog.Logger (HTTP 미들웨어, 커맨드 헬퍼용)
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}
