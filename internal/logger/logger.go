// Package logger configures the internal logrus logger and opens the access
// log.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	internalLogFile = "keygate.log"
	accessLogFile   = "access.log"
	errorLogFile    = "errors.log"
)

// Options configures the internal logger
type Options struct {
	// Dir is the directory of the internal log file; empty disables it
	Dir string
	// StdErr also writes the internal log to stderr
	StdErr bool
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string
	// SmartDir, if set, additionally receives all entries of level ERROR
	// and above
	SmartDir string
}

// AccessOptions configures the access log
type AccessOptions struct {
	Dir    string
	StdErr bool
}

// Init configures the global logrus logger
func Init(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	w, err := output(opts.Dir, internalLogFile, opts.StdErr)
	if err != nil {
		return err
	}
	log.SetOutput(w)

	if opts.SmartDir != "" {
		f, err := openLogFile(opts.SmartDir, errorLogFile)
		if err != nil {
			return err
		}
		log.AddHook(
			&errorHook{
				w:         f,
				formatter: &log.JSONFormatter{},
			},
		)
	}
	return nil
}

// AccessWriter returns the writer for the access log
func AccessWriter(opts AccessOptions) (io.Writer, error) {
	return output(opts.Dir, accessLogFile, opts.StdErr)
}

func parseLevel(level string) (log.Level, error) {
	switch strings.ToUpper(level) {
	case "", "INFO":
		return log.InfoLevel, nil
	case "DEBUG":
		return log.DebugLevel, nil
	case "TRACE":
		return log.TraceLevel, nil
	case "WARN", "WARNING":
		return log.WarnLevel, nil
	case "ERROR":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, errors.Errorf("unknown log level '%s'", level)
}

func output(dir, file string, stderr bool) (io.Writer, error) {
	if dir == "" {
		return os.Stderr, nil
	}
	f, err := openLogFile(dir, file)
	if err != nil {
		return nil, err
	}
	if stderr {
		return io.MultiWriter(f, os.Stderr), nil
	}
	return f, nil
}

func openLogFile(dir, file string) (*os.File, error) {
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open log file '%s'", path)
	}
	return f, nil
}

// errorHook duplicates error entries to a separate writer
type errorHook struct {
	w         io.Writer
	formatter log.Formatter
}

func (h *errorHook) Levels() []log.Level {
	return []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
	}
}

func (h *errorHook) Fire(entry *log.Entry) error {
	data, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(data)
	return err
}
