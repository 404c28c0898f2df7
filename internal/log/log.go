// Package log maps the harness's operator-facing verbosity onto logrus.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level is the verbosity of the harness's diagnostic output.
type Level int

const (
	// Quiet keeps only warnings and errors.
	Quiet Level = iota
	// Basic adds run progress: testfile counts, start/finish lines.
	Basic
	// Detailed adds matrix discovery, batch composition and bisection tracing.
	Detailed
	// Wire additionally dumps raw subprocess output and document fingerprints.
	Wire
)

// LevelFromInt clamps i into the valid Level range.
func LevelFromInt(i int) Level {
	switch {
	case i <= 0:
		return Quiet
	case i == 1:
		return Basic
	case i == 2:
		return Detailed
	default:
		return Wire
	}
}

func (l Level) String() string {
	switch l {
	case Quiet:
		return "quiet"
	case Basic:
		return "basic"
	case Detailed:
		return "detailed"
	case Wire:
		return "wire"
	default:
		return "unknown"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case Quiet:
		return logrus.WarnLevel
	case Basic:
		return logrus.InfoLevel
	case Detailed:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// Init configures the standard logrus logger for the given verbosity and
// returns it. Every harness package logs through the standard logger, so one
// Init call at startup governs the whole process.
func Init(l Level) *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(l.logrusLevel())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}
