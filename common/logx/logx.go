// Package logx contains a thin wrapper for github.com/sirupsen/logrus library.
// Provides named loggers sharing one configured root logger.
//
// Configuration
//
// Configure is called once on startup with the "logging" section of the
// application config. Until then all output is printed to stderr with info level.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NameKey is the entry field holding the logger name.
const NameKey = "logger"

var (
	root    = newRoot()
	mu      sync.Mutex
	closers []io.Closer
)

func newRoot() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(new(format))
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// Get a logger with the specified name.
func Get(name string) *logrus.Entry {
	return root.WithField(NameKey, name)
}

// Configure applies config to the shared logger. Files opened by
// a previous call are closed.
func Configure(config Config) error {
	config = config.withDefaults()
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return errors.Wrapf(err, "parse level %s", config.Level)
	}

	writers := make([]io.Writer, 0, len(config.Output))
	opened := make([]io.Closer, 0)
	for _, output := range config.Output {
		switch output {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				closeAll(opened)
				return errors.Wrapf(err, "open log file %s", output)
			}

			writers = append(writers, file)
			opened = append(opened, file)
		}
	}

	var formatter logrus.Formatter
	switch config.Format {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: defaultTimeFormat}
	case "text":
		formatter = &format{color: config.Color}
	default:
		closeAll(opened)
		return errors.Errorf("unsupported log format %s", config.Format)
	}

	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(level)
	root.SetFormatter(formatter)
	root.SetOutput(io.MultiWriter(writers...))
	closeAll(closers)
	closers = opened
	return nil
}

// Close releases log files opened by Configure and resets output to stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	root.SetOutput(os.Stderr)
	err := closeAll(closers)
	closers = nil
	return err
}

func closeAll(values []io.Closer) error {
	var first error
	for _, closer := range values {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
