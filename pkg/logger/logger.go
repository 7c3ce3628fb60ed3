// Package logger wraps a process wide zerolog logger. The level gate is
// zerolog's global level, so loggers derived with WithComponent follow
// level changes made after they were created.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	Debug      bool   `mapstructure:"debug" json:"debug"`
	Output     string `mapstructure:"output" json:"output"`
	TimeFormat string `mapstructure:"time_format" json:"time_format"`
}

var root = newRoot(os.Stdout)

func newRoot(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

func (c Config) level() (zerolog.Level, error) {
	switch {
	case c.Debug:
		return zerolog.DebugLevel, nil
	case c.Level == "":
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(c.Level)
}

func (c Config) writer() io.Writer {
	if c.Output == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// Init replaces the root logger. Config.Debug wins over Config.Level.
func Init(c Config) error {
	lvl, err := c.level()
	if err != nil {
		return err
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if c.TimeFormat != "" {
		zerolog.TimeFieldFormat = c.TimeFormat
	}
	zerolog.SetGlobalLevel(lvl)
	root = newRoot(c.writer())
	log.Logger = root
	return nil
}

// SetOutput points the root logger at w. Loggers derived earlier keep their
// writer.
func SetOutput(w io.Writer) {
	root = newRoot(w)
	log.Logger = root
}

func SetLevel(lvl zerolog.Level) { zerolog.SetGlobalLevel(lvl) }

func GetLevel() zerolog.Level { return zerolog.GlobalLevel() }

func Debug() *zerolog.Event { return root.Debug() }
func Info() *zerolog.Event  { return root.Info() }
func Warn() *zerolog.Event  { return root.Warn() }
func Error() *zerolog.Event { return root.Error() }
func Fatal() *zerolog.Event { return root.Fatal() }

// WithComponent derives a logger tagged with the component name.
func WithComponent(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}

// CronLogger lets robfig/cron log through zerolog. Info goes to debug, cron
// is chatty.
type CronLogger struct {
	Logger zerolog.Logger
}

func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
