package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var (
	mu       sync.Mutex
	buf      = make([]string, 0, 500)
	maxLines = 500
	// default to no stderr output to avoid breaking TUIs; enable via TRACKDASH_LOG_STDERR=1
	toStderr = false
	file     io.WriteCloser

	lmu    sync.RWMutex
	logger = newLogger(zerolog.InfoLevel)
)

// ringWriter receives one formatted line per zerolog event.
type ringWriter struct{}

func (ringWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	mu.Lock()
	defer mu.Unlock()
	if len(buf) >= maxLines {
		// drop oldest
		copy(buf[0:], buf[1:])
		buf = buf[:len(buf)-1]
	}
	buf = append(buf, line)
	if toStderr {
		fmt.Fprintln(os.Stderr, line)
	}
	if file != nil {
		fmt.Fprintln(file, line)
	}
	return len(p), nil
}

func newLogger(lv zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: ringWriter{}, NoColor: true, TimeFormat: "2006-01-02T15:04:05.000Z07:00"}
	return zerolog.New(out).Level(lv).With().Timestamp().Logger()
}

func SetLevel(l Level) {
	lv := zerolog.InfoLevel
	switch l {
	case Debug:
		lv = zerolog.DebugLevel
	case Warn:
		lv = zerolog.WarnLevel
	case Error:
		lv = zerolog.ErrorLevel
	}
	lmu.Lock()
	logger = logger.Level(lv)
	lmu.Unlock()
}

func SetLevelFromEnv() {
	lv := strings.ToLower(strings.TrimSpace(os.Getenv("TRACKDASH_LOG_LEVEL")))
	switch lv {
	case "debug":
		SetLevel(Debug)
	case "info":
		SetLevel(Info)
	case "warn", "warning":
		SetLevel(Warn)
	case "error":
		SetLevel(Error)
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("TRACKDASH_LOG_STDERR"))); v != "" {
		mu.Lock()
		toStderr = v != "0" && v != "false" && v != "no"
		mu.Unlock()
	}
}

// SetFile mirrors every log line to path (appending). An empty path disables it.
func SetFile(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file = f
	return nil
}

// L returns the underlying structured logger for call sites that attach fields.
func L() *zerolog.Logger {
	lmu.RLock()
	defer lmu.RUnlock()
	l := logger
	return &l
}

func Debugf(format string, a ...any) { L().Debug().Msgf(format, a...) }
func Infof(format string, a ...any)  { L().Info().Msgf(format, a...) }
func Warnf(format string, a ...any)  { L().Warn().Msgf(format, a...) }
func Errorf(format string, a ...any) { L().Error().Msgf(format, a...) }

func Dump() string {
	mu.Lock()
	defer mu.Unlock()
	return strings.Join(buf, "\n")
}

func Lines() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(buf))
	copy(out, buf)
	return out
}
