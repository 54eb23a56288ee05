package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// Global logger instance. Usable before Init; Init replaces it.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSON {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Convenience functions
func Info(format string, v ...interface{}) {
	Logger.Info().Msg(fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	Logger.Error().Msg(fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	Logger.Debug().Msg(fmt.Sprintf(format, v...))
}

func Fatal(format string, v ...interface{}) {
	Logger.Fatal().Msg(fmt.Sprintf(format, v...))
}

func Warn(format string, v ...interface{}) {
	Logger.Warn().Msg(fmt.Sprintf(format, v...))
}
