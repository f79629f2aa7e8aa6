package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petems/whispr/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a new zerolog logger with console and file output
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates the console + rotating file logger filtered at level.
func NewWithLevel(level string) zerolog.Logger {
	return newLogger(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
		fileWriter(filepath.Join(config.StatePath(), "whispr.log")),
		ParseLevel(level),
	)
}

func newLogger(console, file io.Writer, level zerolog.Level) zerolog.Logger {
	multi := zerolog.MultiLevelWriter(console, file)
	return zerolog.New(multi).Level(level).With().Timestamp().Caller().Logger()
}

// fileWriter rotates the log at 10MB and keeps a week of backups.
func fileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
