package logger

import (
	"github.com/sirupsen/logrus"
)

// Logger is the structured logger used across the service. It embeds
// logrus so call sites get WithField/Infof/Errorf directly.
type Logger struct {
	*logrus.Logger
}

// New builds a logger at info level with full timestamps.
func New() *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{Logger: l}
}

// NewWithLevel builds a logger at the named level, falling back to info
// when the level string is unknown.
func NewWithLevel(level string) *Logger {
	l := New()
	if parsed, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(parsed)
	}
	return l
}
