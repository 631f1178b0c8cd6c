// Package logx builds the process logger.
package logx

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text logger at the named level. Unknown levels fall back to
// info.
func New(level string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	return &logrus.Logger{
		Out:       out,
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     lvl,
		ExitFunc:  os.Exit,
	}
}
