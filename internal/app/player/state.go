// Package player hosts a segment timer: it drives the per-second clock and
// turns timer events into playback commands, audio cues and notifications.
package player

// State represents the session state.
type State int

const (
	StateIdle     State = iota // Plan loaded (or not) but never started
	StatePlaying               // Clock running
	StatePaused                // Started and paused
	StateComplete              // Last segment ended
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}
