// Package logging provides process- and cycler-scoped structured logging,
// grounded on the teacher's common.Logger/common.OutputSplitter pair: a
// logrus.Logger configured by level and format, writing through an
// OutputSplitter that routes error-level entries to stderr and everything
// else to stdout so container log collectors can treat the two streams
// differently.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr when they carry
// logrus's "level=error" or "level=fatal" marker, stdout otherwise.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// New builds a logrus.Logger for a process from a level string ("debug",
// "info", "warn", "error") and a format ("text" or "json"), writing through
// OutputSplitter.
func New(level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(OutputSplitter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return l
}

// ForCycler returns an Entry pre-scoped to one cycler instance, so every
// message it logs is automatically tagged with which cycler produced it —
// load-bearing once multiple cyclers share a process's stdout.
func ForCycler(l *logrus.Logger, cyclerName string) *logrus.Entry {
	return l.WithField("cycler", cyclerName)
}

// ForComponent returns an Entry tagged with a component name, for
// cross-cutting subsystems (observability server, recording sink) that
// aren't scoped to a single cycler.
func ForComponent(l *logrus.Logger, component string) *logrus.Entry {
	return l.WithField("component", component)
}
