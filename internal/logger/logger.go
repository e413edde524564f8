package logger

import (
	"io"
	"log/slog"
	"os"

	"cognichat/internal/config"
)

var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// InitLogger installs the JSON logger; debug mode lowers the level and adds source positions.
func InitLogger(cfg *config.Config) {
	InitWithWriter(os.Stdout, cfg.GinMode == "debug")
}

// InitWithWriter installs a JSON logger writing to w.
func InitWithWriter(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// With returns a child logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
