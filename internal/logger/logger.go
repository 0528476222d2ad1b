package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	NOTICE
	WARN
	ERROR
	FATAL
)

var (
	currentLevel Level = INFO
	base               = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}).With().Timestamp().Logger()
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	base = newLogger(w)
}

func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = DEBUG
	case "INFO":
		currentLevel = INFO
	case "NOTICE":
		currentLevel = NOTICE
	case "WARN", "WARNING":
		currentLevel = WARN
	case "ERROR":
		currentLevel = ERROR
	case "FATAL":
		currentLevel = FATAL
	default:
		currentLevel = INFO
	}
}

// CurrentLevel returns the active threshold.
func CurrentLevel() Level {
	return currentLevel
}

func event(level Level) *zerolog.Event {
	switch level {
	case DEBUG:
		return base.Debug()
	case INFO:
		return base.Info()
	case NOTICE:
		return base.Info().Str("notice", "true")
	case WARN:
		return base.Warn()
	case ERROR:
		return base.Error()
	default:
		return base.Fatal()
	}
}

func output(level Level, format string, v ...interface{}) {
	if currentLevel <= level {
		event(level).Msg(fmt.Sprintf(format, v...))
	}
}

func outputLn(level Level, v ...interface{}) {
	if currentLevel <= level {
		event(level).Msg(fmt.Sprint(v...))
	}
}

func Debug(v ...interface{}) {
	outputLn(DEBUG, v...)
}

func Debugf(format string, v ...interface{}) {
	output(DEBUG, format, v...)
}

func Info(v ...interface{}) {
	outputLn(INFO, v...)
}

func Infof(format string, v ...interface{}) {
	output(INFO, format, v...)
}

func Notice(v ...interface{}) {
	outputLn(NOTICE, v...)
}

func Noticef(format string, v ...interface{}) {
	output(NOTICE, format, v...)
}

func Warn(v ...interface{}) {
	outputLn(WARN, v...)
}

func Warnf(format string, v ...interface{}) {
	output(WARN, format, v...)
}

func Error(v ...interface{}) {
	outputLn(ERROR, v...)
}

func Errorf(format string, v ...interface{}) {
	output(ERROR, format, v...)
}

func Fatal(v ...interface{}) {
	base.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...interface{}) {
	base.Fatal().Msg(fmt.Sprintf(format, v...))
}
