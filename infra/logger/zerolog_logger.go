package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Configure.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
	format string
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a logger whose entries carry the component field.
// Without a configured format, APP_ENV=dev selects the console writer and
// anything else JSON.
func NewZerologLogger(component string) Logger {
	mu.RLock()
	w, f := output, format
	mu.RUnlock()
	if f == "" && strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		f = FormatConsole
	}
	if f == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &ZerologLogger{log: zerolog.New(w).With().Timestamp().Str("component", component).Logger()}
}

// Configure sets the global level and the output format of loggers created
// afterwards. Empty values keep the current setting.
func Configure(level, outputFormat string) error {
	if level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(lvl)
	}
	switch f := strings.ToLower(outputFormat); f {
	case "":
	case FormatJSON, FormatConsole:
		mu.Lock()
		format = f
		mu.Unlock()
	default:
		return fmt.Errorf("unknown log format %q", outputFormat)
	}
	return nil
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func (l *ZerologLogger) Debugf(f string, args ...any) { l.log.Debug().Msgf(f, args...) }

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(f string, args ...any)  { l.log.Info().Msgf(f, args...) }
func (l *ZerologLogger) Warnf(f string, args ...any)  { l.log.Warn().Msgf(f, args...) }
func (l *ZerologLogger) Errorf(f string, args ...any) { l.log.Error().Msgf(f, args...) }
