// Package logging sets up the zerolog logger shared by the commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Config holds the logging settings.
type Config struct {
	Level          string `mapstructure:"logLevel"`
	Dir            string `mapstructure:"logsDir"` // empty = no log file
	Console        bool   `mapstructure:"logConsole"`
	GraylogEnabled bool   `mapstructure:"graylogEnabled"`
	GraylogAddress string `mapstructure:"graylogAddress"`
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel maps a config level name onto a zerolog level. Unknown names give INFO.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger is a configured logger plus the sinks it must release.
type Logger struct {
	zerolog.Logger
	FilePath string
	closers  []io.Closer
}

// Close releases the log file and the GELF connection.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

// Setup builds a logger writing console format to console (when enabled),
// plain console format to a timestamped file under cfg.Dir, and GELF to
// Graylog when enabled.
func Setup(cfg Config, name string, console io.Writer) (*Logger, error) {
	level := ParseLevel(cfg.Level)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	out := &Logger{}
	var writers []io.Writer
	if cfg.Console && console != nil {
		// write console format with colors to console
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
		})
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		out.FilePath = LogFilePath(cfg.Dir, name, time.Now())
		file, err := os.OpenFile(out.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out.closers = append(out.closers, file)
		// write console format without colors to file
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if cfg.GraylogEnabled {
		gw, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("connecting to graylog at %s: %w", cfg.GraylogAddress, err)
		}
		out.closers = append(out.closers, gw)
		writers = append(writers, gw)
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	out.Logger = zerolog.New(w).Level(level).With().Timestamp().Str("app", name).Logger()
	out.Info().Str("loglevel", level.String()).Msg("Logging set up")
	return out, nil
}
