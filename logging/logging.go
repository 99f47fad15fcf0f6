// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mwerner/todo-api/config"
)

// New constructs a logrus logger from config. Format "json" selects JSON
// output; anything else gets the text formatter.
func New(cfg config.Log) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
