package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOptions configures the global zerolog logger.
type LogOptions struct {
	Level string
	// File additionally receives uncolored console output. Ignored under
	// systemd, where journald already captures stderr.
	File   string
	Stderr io.Writer
	Hooks  []zerolog.Hook
}

// ConfigureLogger installs the global logger. The returned closer releases
// the log file, if one was opened.
func ConfigureLogger(opts LogOptions) (io.Closer, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: stderr}
	var closer io.Closer = nopCloser{}

	// JOURNAL_STREAM is set by systemd when running as a service.
	_, underSystemd := os.LookupEnv("JOURNAL_STREAM")
	if opts.File != "" && !underSystemd {
		logFile, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		out = io.MultiWriter(out, fileWriter)
		closer = logFile
	}

	logger := log.Output(out)
	for _, h := range opts.Hooks {
		logger = logger.Hook(h)
	}
	log.Logger = logger

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
