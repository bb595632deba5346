package planning

import "github.com/osa030/spinbox/internal/domain/plan"

type segmentKind struct {
	name        string
	position    plan.Position
	description string
}

var (
	warmUp = segmentKind{"Warm-Up", plan.PositionSeated,
		"Light resistance, easy pace. Focus on warming up the legs and finding your rhythm."}
	coolDown = segmentKind{"Cool-Down", plan.PositionSeated,
		"Low resistance, slow pace. Focus on deep breathing and bringing heart rate down."}

	highKinds = []segmentKind{
		{"Seated Sprint", plan.PositionSeated, "High cadence, moderate resistance. Push for speed while staying controlled."},
		{"Standing Climb", plan.PositionStanding, "Heavy resistance, slow powerful pushes. Drive through your legs."},
		{"Standing Sprint", plan.PositionStanding, "High cadence out of the saddle. Stay light on the pedals."},
		{"Attack", plan.PositionStanding, "Maximum effort! Give it everything you've got."},
	}
	mediumKinds = []segmentKind{
		{"Endurance", plan.PositionSeated, "Moderate resistance, steady cadence. Find a sustainable pace."},
		{"Rolling Hills", plan.PositionSeated, "Alternating resistance. Up and over the hills."},
		{"Seated Climb", plan.PositionSeated, "Building resistance, controlled cadence. Steady power output."},
		{"Intervals", plan.PositionSeated, "Work-rest cycles. Push during work, recover during rest."},
	}
	lowKinds = []segmentKind{
		{"Recovery", plan.PositionSeated, "Light resistance, easy cadence. Active recovery."},
		{"Flat Road", plan.PositionSeated, "Moderate pace, low resistance. Keep the legs moving."},
		{"Easy Spin", plan.PositionSeated, "Minimal resistance, comfortable cadence. Just keep pedaling."},
	}
)

// segmentType picks the segment kind for track index of total.
// The first track warms up, the last cools down, and the rest rotate
// through the kinds for their intensity.
func segmentType(index, total int, intensity plan.Intensity) segmentKind {
	switch {
	case index == 0:
		return warmUp
	case index == total-1:
		return coolDown
	}

	var kinds []segmentKind
	switch intensity {
	case plan.IntensityHigh:
		kinds = highKinds
	case plan.IntensityMedium:
		kinds = mediumKinds
	default:
		kinds = lowKinds
	}
	return kinds[index%len(kinds)]
}
