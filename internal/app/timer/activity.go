package timer

import "github.com/osa030/spinbox/internal/domain/plan"

// Activity is a normalized snapshot of a segment or sub-segment,
// so renderers need no branching of their own.
type Activity struct {
	Name            string
	Intensity       plan.Intensity
	Position        plan.Position
	BPMRange        string
	Description     string
	TimeRemaining   int
	DurationSeconds int
	IsSubSegment    bool
	SegmentIndex    int
	SubSegmentIndex int // NoSubSegment for whole segments
}

func segmentActivity(seg *plan.Segment, index, remaining int) Activity {
	return Activity{
		Name:            seg.Name,
		Intensity:       seg.Intensity,
		Position:        seg.Position,
		BPMRange:        seg.SuggestedBPMRange,
		Description:     seg.Description,
		TimeRemaining:   remaining,
		DurationSeconds: seg.EffectiveDuration(),
		SegmentIndex:    index,
		SubSegmentIndex: NoSubSegment,
	}
}

func subSegmentActivity(sub *plan.SubSegment, index, subIndex, remaining int) Activity {
	return Activity{
		Name:            sub.Name,
		Intensity:       sub.Intensity,
		Position:        sub.Position,
		BPMRange:        sub.SuggestedBPMRange,
		Description:     sub.Description,
		TimeRemaining:   remaining,
		DurationSeconds: sub.DurationSeconds,
		IsSubSegment:    true,
		SegmentIndex:    index,
		SubSegmentIndex: subIndex,
	}
}
