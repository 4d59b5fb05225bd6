package nativeload

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a logger from c. A File is written through a rotating writer.
func NewLogger(c LogConfig) (*log.Logger, error) {
	var w io.Writer = os.Stderr
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return nil, err
		}
		w = &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress,
			LocalTime:  true,
		}
	}
	lvl := log.InfoLevel
	if c.Level != "" {
		var err error
		if lvl, err = log.ParseLevel(c.Level); err != nil {
			return nil, err
		}
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "nativeload",
	}), nil
}
