// Package logging builds the structured logger shared by the lanes binaries.
package logging

import (
	"fmt"
	"io"

	"github.com/dyluth/lanes/internal/config"
	log "github.com/sirupsen/logrus"
)

// New creates a logger writing to out with the configured level and format.
// Every entry carries a "component" field naming the binary.
func New(cfg config.LogConfig, component string, out io.Writer) (*log.Entry, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch cfg.Format {
	case "", "json":
		logger.SetFormatter(&log.JSONFormatter{
			FieldMap: log.FieldMap{
				log.FieldKeyTime: "timestamp",
				log.FieldKeyMsg:  "message",
			},
		})
	case "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log.format: %s", cfg.Format)
	}

	return logger.WithField("component", component), nil
}
