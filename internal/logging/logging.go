// Package logging initializes the global zerolog logger with a console
// sink and an optional rotating file sink.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the global logger. Level is one of debug, info, warn,
// error (default info). When logDir is non-empty, logs are additionally
// written to a rotating file under it.
func Init(level, logDir string) {
	zerolog.SetGlobalLevel(parseLevel(level))

	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	var writer io.Writer = consoleWriter
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   filepath.Join(logDir, "enso-api.log"),
				MaxSize:    16, // megabytes
				MaxBackups: 8,
				MaxAge:     90, // days
				Compress:   true,
			}
			writer = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
		} else {
			log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory, console only")
		}
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
