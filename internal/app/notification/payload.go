package notification

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/spinbox/internal/app/timer"
)

// EventStruct converts a timer event into a notification payload.
// Only the fields meaningful for the event type are included.
func EventStruct(ev timer.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"type":              ev.Type.String(),
		"segment_index":     ev.SegmentIndex,
		"sub_segment_index": ev.SubSegmentIndex,
	}

	switch ev.Type {
	case timer.EventSegmentActivated, timer.EventSubSegmentTransition:
		if ev.Current != nil {
			fields["current"] = ActivityMap(*ev.Current)
		}
		if ev.Next != nil {
			fields["next"] = ActivityMap(*ev.Next)
		}
		if ev.Seek {
			fields["music_position_ms"] = ev.MusicPositionMs
		}
	case timer.EventSegmentBoundary:
		fields["has_next"] = ev.HasNext
	case timer.EventCountdownTick:
		fields["seconds_remaining"] = ev.SecondsRemaining
	case timer.EventProgressUpdate:
		fields["fraction"] = ev.Fraction
	case timer.EventPositionChanged:
		fields["fraction"] = ev.Fraction
		if ev.Seek {
			fields["music_position_ms"] = ev.MusicPositionMs
		}
	case timer.EventDurationMismatch:
		if ev.Mismatch != nil {
			fields["segment_name"] = ev.Mismatch.SegmentName
			fields["declared"] = ev.Mismatch.Declared
			fields["computed"] = ev.Mismatch.Computed
		}
	case timer.EventVolumeGuidance:
		fields["volume"] = ev.Volume
		fields["stop"] = ev.StopMusic
	case timer.EventPlayStateChanged:
		fields["playing"] = ev.Playing
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build payload for %s", ev.Type)
	}
	return s, nil
}

// ActivityMap converts an activity snapshot into a structpb-compatible map.
func ActivityMap(a timer.Activity) map[string]any {
	return map[string]any{
		"name":              a.Name,
		"intensity":         string(a.Intensity),
		"position":          string(a.Position),
		"bpm_range":         a.BPMRange,
		"description":       a.Description,
		"time_remaining":    a.TimeRemaining,
		"duration_seconds":  a.DurationSeconds,
		"is_sub_segment":    a.IsSubSegment,
		"segment_index":     a.SegmentIndex,
		"sub_segment_index": a.SubSegmentIndex,
	}
}
