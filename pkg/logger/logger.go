package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	log     = newLogger(os.Stdout)
	logFile *os.File
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
}

// InitLogger sends logs to stdout and, when filename is set, appends them
// to that file as well. level is a zerolog level name ("debug", "info"...).
func InitLogger(filename string, level string) error {
	mu.Lock()
	defer mu.Unlock()

	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = os.Stdout
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		if logFile != nil {
			logFile.Close()
		}
		logFile = f
		w = io.MultiWriter(os.Stdout, logFile)
	}
	log = newLogger(w)
	return nil
}

// SetOutput redirects logging, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w)
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func current() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := log
	return &l
}

func Debugf(format string, v ...interface{}) {
	current().Debug().Msgf(format, v...)
}

func Info(format string, v ...interface{}) {
	current().Info().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	current().Info().Msgf(format, v...)
}

func Warn(format string, v ...interface{}) {
	current().Warn().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	current().Warn().Msgf(format, v...)
}

func Error(format string, v ...interface{}) {
	current().Error().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	current().Error().Msgf(format, v...)
}
