// Package logging builds the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out at the given level. Format is "json"
// (the default, with timestamp/severity/message keys) or "text".
func New(out io.Writer, level, format, app string) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	log := logrus.New()
	log.Out = out
	log.Level = lvl
	switch format {
	case "text":
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339}
	default:
		log.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	}
	return log.WithField("app", app), nil
}

// Discard is a logger that drops everything. Tests use it.
func Discard() logrus.FieldLogger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}
