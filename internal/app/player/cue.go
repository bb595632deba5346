package player

import zlog "github.com/rs/zerolog/log"

// CueSink plays audio cues. Tone synthesis belongs to the sink.
type CueSink interface {
	Warning()
	Countdown(secondsRemaining int)
	Transition()
}

// LogCueSink writes cues to the log.
type LogCueSink struct{}

// Warning logs the warning cue.
func (LogCueSink) Warning() {
	zlog.Info().Msg("cue: warning")
}

// Countdown logs a countdown cue.
func (LogCueSink) Countdown(secondsRemaining int) {
	zlog.Info().Int("seconds_remaining", secondsRemaining).Msg("cue: countdown")
}

// Transition logs the transition chime.
func (LogCueSink) Transition() {
	zlog.Info().Msg("cue: transition")
}

type nopCueSink struct{}

func (nopCueSink) Warning()      {}
func (nopCueSink) Countdown(int) {}
func (nopCueSink) Transition()   {}
