package check

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// Chain runs checks in sequence.
type Chain struct {
	checks []Check
}

// NewChain creates a new check chain.
func NewChain() *Chain {
	return &Chain{
		checks: make([]Check, 0),
	}
}

// Add adds a check to the chain.
func (c *Chain) Add(ch Check) {
	c.checks = append(c.checks, ch)
}

// Run runs every check and returns all findings. Unlike a filter chain it
// never stops early; each finding is logged as a warning.
func (c *Chain) Run(p *plan.Plan) []Finding {
	var findings []Finding
	for _, ch := range c.checks {
		for _, f := range ch.Run(p) {
			f.Check = ch.Name()
			zlog.Warn().
				Str("check", f.Check).
				Str("code", f.Code).
				Int("segment", f.SegmentIndex).
				Msg(f.Message)
			findings = append(findings, f)
		}
	}
	return findings
}

// Checks returns all checks in the chain.
func (c *Chain) Checks() []Check {
	return c.checks
}
