package timer

// EventType represents a timer event type.
type EventType int

const (
	EventSegmentActivated     EventType = iota // A segment became the active segment
	EventSubSegmentTransition                  // The active sub-segment changed within a segment
	EventSegmentBoundary                       // The active segment ran out of time
	EventPlanComplete                          // The last segment ended; playing stops
	EventCountdownTick                         // Seconds remaining in the active unit
	EventProgressUpdate                        // Progress fraction of the active unit
	EventPositionChanged                       // Cursor moved by a seek
	EventDurationMismatch                      // Sub-segment sum differs from declared duration
	EventVolumeGuidance                        // Fade-out target volume or stop request
	EventPlayStateChanged                      // Playing flag changed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSegmentActivated:
		return "segment_activated"
	case EventSubSegmentTransition:
		return "sub_segment_transition"
	case EventSegmentBoundary:
		return "segment_boundary"
	case EventPlanComplete:
		return "plan_complete"
	case EventCountdownTick:
		return "countdown_tick"
	case EventProgressUpdate:
		return "progress_update"
	case EventPositionChanged:
		return "position_changed"
	case EventDurationMismatch:
		return "duration_mismatch"
	case EventVolumeGuidance:
		return "volume_guidance"
	case EventPlayStateChanged:
		return "play_state_changed"
	default:
		return "unknown"
	}
}

// DurationMismatch describes a segment whose sub-segments disagree with its declared duration.
type DurationMismatch struct {
	SegmentName string
	Declared    int
	Computed    int
}

// Event represents a timer event. Only the fields relevant to Type are set.
type Event struct {
	Type EventType

	SegmentIndex    int
	SubSegmentIndex int

	Current *Activity // SegmentActivated, SubSegmentTransition
	Next    *Activity // SegmentActivated, SubSegmentTransition (nil at end of plan)

	HasNext          bool    // SegmentBoundary
	SecondsRemaining int     // CountdownTick
	Fraction         float64 // ProgressUpdate, PositionChanged

	// Seek is set when the host must reposition the external player to MusicPositionMs.
	Seek            bool
	MusicPositionMs int

	Volume    float64 // VolumeGuidance: target fraction of the current volume
	StopMusic bool    // VolumeGuidance: stop the song and restore full volume

	Mismatch *DurationMismatch // DurationMismatch

	Playing bool // PlayStateChanged
}
