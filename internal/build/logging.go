// Package build holds the process level plumbing of the daemon: build
// metadata and the console plus rotating file logging stack.
package build

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// LogConfig configures NewLogging.
type LogConfig struct {
	// Dir is where the log file is written. Empty disables file logging.
	Dir string

	// Level is a btclog level name such as "debug" or "info".
	Level string

	MaxFiles      int
	MaxFileSizeMB int
}

// Logging is the daemon logging stack.
type Logging struct {
	handlers *HandlerSet
	rotator  fn.Option[*RotatingLogWriter]

	// Root is the logger handed to the library packages.
	Root *slog.Logger
}

// NewLogging builds a handler set writing to console and, when cfg.Dir is
// set, to a rotating file.
func NewLogging(cfg LogConfig, console io.Writer) (*Logging, error) {
	level := btclog.LevelInfo
	if cfg.Level != "" {
		l, ok := btclog.LevelFromString(cfg.Level)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.Level)
		}
		level = l
	}

	handlers := []btclogv2.Handler{btclogv2.NewDefaultHandler(console)}

	rot := fn.None[*RotatingLogWriter]()
	if cfg.Dir != "" {
		rotCfg := DefaultLogRotatorConfig()
		rotCfg.LogDir = cfg.Dir
		if cfg.MaxFiles > 0 {
			rotCfg.MaxLogFiles = cfg.MaxFiles
		}
		if cfg.MaxFileSizeMB > 0 {
			rotCfg.MaxLogFileSize = cfg.MaxFileSizeMB
		}

		w := NewRotatingLogWriter()
		if err := w.InitLogRotator(rotCfg); err != nil {
			return nil, err
		}
		rot = fn.Some(w)

		handlers = append(handlers, btclogv2.NewDefaultHandler(w))
	}

	set := NewHandlerSet(handlers...)
	set.SetLevel(level)

	return &Logging{
		handlers: set,
		rotator:  rot,
		Root:     slog.New(set),
	}, nil
}

// SubLogger returns a btclog logger tagged with subsystem.
func (l *Logging) SubLogger(subsystem string) btclogv2.Logger {
	return btclogv2.NewSLogger(l.handlers.SubSystem(subsystem))
}

// SetLevel changes the level of every handler.
func (l *Logging) SetLevel(level btclog.Level) {
	l.handlers.SetLevel(level)
}

// Close flushes the log file.
func (l *Logging) Close() error {
	return fn.MapOptionZ(l.rotator, func(w *RotatingLogWriter) error {
		return w.Close()
	})
}
