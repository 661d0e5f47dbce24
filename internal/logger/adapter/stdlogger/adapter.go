// Package stdlogger adapts the zerolog global logger to the printf-style
// logger interface expected by third-party libraries.
package stdlogger

import (
	"github.com/rs/zerolog/log"
)

// Logger forwards printf-style calls to zerolog at the matching level.
type Logger struct{}

// New creates a printf-style adapter around the global zerolog logger.
func New() Logger {
	return Logger{}
}

// Debugf logs at debug level.
func (Logger) Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

// Infof logs at info level.
func (Logger) Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

// Warningf logs at warn level.
func (Logger) Warningf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

// Errorf logs at error level.
func (Logger) Errorf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}
