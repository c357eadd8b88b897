package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the number of rotated files kept on disk.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the size in MB at which a file rotates.
	DefaultMaxLogFileSize = 20

	// DefaultLogFilename is the name of the daemon log file.
	DefaultLogFilename = "pagesumd.log"
)

// LogRotatorConfig configures the log file rotator.
type LogRotatorConfig struct {
	LogDir string

	// MaxLogFiles of 0 disables rotation.
	MaxLogFiles int

	// MaxLogFileSize is in megabytes.
	MaxLogFileSize int

	// Filename defaults to DefaultLogFilename.
	Filename string
}

// DefaultLogRotatorConfig returns the default rotator settings.
func DefaultLogRotatorConfig() *LogRotatorConfig {
	return &LogRotatorConfig{
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       DefaultLogFilename,
	}
}

// RotatingLogWriter is an io.Writer feeding a jrick/logrotate rotator
// through a pipe. Rotated files are gzip compressed.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
	done    chan struct{}
}

// NewRotatingLogWriter creates a writer that discards everything until
// InitLogRotator is called.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator creates the log directory and starts the rotator.
func (r *RotatingLogWriter) InitLogRotator(cfg *LogRotatorConfig) error {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}
	logFile := filepath.Join(cfg.LogDir, filename)

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	// The rotator threshold is in kilobytes.
	var err error
	r.rotator, err = rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("create file rotator: %w", err)
	}
	r.rotator.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)

		// The rotator is the log destination, so report on stderr.
		if err := r.rotator.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
		}
	}()
	r.pipe = pw

	return nil
}

// Write implements io.Writer.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}

	return r.pipe.Write(b)
}

// Close flushes the rotator and waits for it to exit.
func (r *RotatingLogWriter) Close() error {
	if r.pipe == nil {
		return nil
	}

	err := r.pipe.Close()
	<-r.done

	return err
}
