package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger from the logging configuration. JSON
// records go to stderr and, when a file is configured, to a rotated log file.
func NewLogger(config *Config) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if config.Logging.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   config.Logging.File,
			MaxSize:    config.Logging.MaxSizeMB,
			MaxBackups: config.Logging.MaxBackups,
			MaxAge:     config.Logging.MaxAgeDays,
		}
		writer = zerolog.MultiLevelWriter(os.Stderr, rotated)
		closer = rotated
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Str("level", config.Logging.Level).Msg("Unknown log level, using info")
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
