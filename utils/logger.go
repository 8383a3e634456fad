package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.InfoLevel)
)

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(level)
	return l
}

// InitLogger rebuilds both loggers. A non-empty level overrides the info logger level.
func InitLogger(level string) {
	InfoLogger = newLogger(os.Stdout, logrus.InfoLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.InfoLevel)

	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		ErrorLogger.Printf("invalid LOG_LEVEL %q: %v", level, err)
		return
	}
	InfoLogger.SetLevel(lvl)
}

// SilenceLoggers discards all output; used by tests.
func SilenceLoggers() {
	InfoLogger.SetOutput(io.Discard)
	ErrorLogger.SetOutput(io.Discard)
}
