package check

import (
	"fmt"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// DurationMismatchCheck reports segments whose sub-segments do not add up to
// the declared duration. Timing uses the sub-segment sum either way.
type DurationMismatchCheck struct{}

func (c *DurationMismatchCheck) Name() string {
	return "duration_mismatch"
}

func (c *DurationMismatchCheck) Description() string {
	return "Reports segments whose sub-segment durations disagree with the declared duration"
}

func (c *DurationMismatchCheck) Codes() []string {
	return []string{"duration_mismatch"}
}

func (c *DurationMismatchCheck) ValidateConfig(map[string]any) error {
	return nil
}

func (c *DurationMismatchCheck) Run(p *plan.Plan) []Finding {
	var findings []Finding
	for i := range p.Segments {
		seg := &p.Segments[i]
		if !seg.HasDurationMismatch() {
			continue
		}
		findings = append(findings, Finding{
			Code:            "duration_mismatch",
			SegmentIndex:    i,
			SubSegmentIndex: -1,
			Message: fmt.Sprintf("%q declares %ds but sub-segments total %ds",
				seg.Name, seg.DurationSeconds, seg.SubSegmentTotal()),
		})
	}
	return findings
}

func init() {
	Register("duration_mismatch", func() Check {
		return &DurationMismatchCheck{}
	})
}
