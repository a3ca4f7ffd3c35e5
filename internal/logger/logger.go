package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New настраивает глобальный zerolog и возвращает корневой логгер сервиса.
// По умолчанию пишет в консоль в читаемом виде, json=true включает JSON для сбора логов.
func New(level string, json bool) zerolog.Logger {
	return newWithWriter(os.Stdout, level, json)
}

func newWithWriter(out io.Writer, level string, json bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorFieldName = "err"

	w := out
	if !json {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}
	l := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = l
	return l
}

// ParseLevel переводит название уровня в zerolog.Level, неизвестное значение даёт info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
