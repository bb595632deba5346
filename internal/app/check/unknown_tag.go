package check

import (
	"fmt"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// UnknownTagCheck reports intensity and position values outside the known sets.
// Empty values are allowed.
type UnknownTagCheck struct{}

func (c *UnknownTagCheck) Name() string {
	return "unknown_tag"
}

func (c *UnknownTagCheck) Description() string {
	return "Reports unknown intensity or position tags"
}

func (c *UnknownTagCheck) Codes() []string {
	return []string{"unknown_intensity", "unknown_position"}
}

func (c *UnknownTagCheck) ValidateConfig(map[string]any) error {
	return nil
}

func (c *UnknownTagCheck) Run(p *plan.Plan) []Finding {
	var findings []Finding
	inspect := func(seg, sub int, name string, in plan.Intensity, pos plan.Position) {
		if in != "" && !in.Valid() {
			findings = append(findings, Finding{
				Code: "unknown_intensity", SegmentIndex: seg, SubSegmentIndex: sub,
				Message: fmt.Sprintf("%q has unknown intensity %q", name, in),
			})
		}
		if pos != "" && !pos.Valid() {
			findings = append(findings, Finding{
				Code: "unknown_position", SegmentIndex: seg, SubSegmentIndex: sub,
				Message: fmt.Sprintf("%q has unknown position %q", name, pos),
			})
		}
	}

	for i := range p.Segments {
		seg := &p.Segments[i]
		inspect(i, -1, seg.Name, seg.Intensity, seg.Position)
		for j, sub := range seg.SubSegments {
			inspect(i, j, sub.Name, sub.Intensity, sub.Position)
		}
	}
	return findings
}

func init() {
	Register("unknown_tag", func() Check {
		return &UnknownTagCheck{}
	})
}
