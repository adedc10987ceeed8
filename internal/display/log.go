package display

import (
	"github.com/rs/zerolog"
)

// Log renders state transitions as structured log lines. Used in watch mode
// where no interactive surface exists.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a logging renderer.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Render implements Renderer.
func (l *Log) Render(state State) {
	event := l.logger.Info().
		Bool("busy", state.Busy).
		Str("active", state.Active.Version).
		Bool("valid", state.Active.Valid).
		Strs("versions", state.Versions)
	if state.Busy && state.Target != "" {
		event = event.Str("target", state.Target)
	}
	if !state.Active.Valid && state.Active.Error != "" {
		event = event.Str("error", state.Active.Error)
	}
	event.Msg("environment state")
}
