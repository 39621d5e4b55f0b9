package logger

import (
	"io"
	"os"

	"airsync/internal/config"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New создает логгер для окружения: local пишет цветной текст, dev и prod пишут JSON
func New(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

// NewWithFile дублирует вывод в файл с ротацией. Пустой path равен New.
func NewWithFile(env, path string) *slog.Logger {
	if path == "" {
		return New(env)
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	return newLogger(env, io.MultiWriter(os.Stdout, file))
}

func newLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case config.EnvLocal:
		return slog.New(newPrettyHandler(w, slog.LevelDebug))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

func setupPrettySlog() *slog.Logger {
	return slog.New(newPrettyHandler(os.Stdout, slog.LevelDebug))
}
