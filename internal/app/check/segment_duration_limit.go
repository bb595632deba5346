package check

import (
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// SegmentDurationLimitConfig represents the configuration for SegmentDurationLimitCheck.
type SegmentDurationLimitConfig struct {
	MinSeconds int `yaml:"min_seconds" mapstructure:"min_seconds" default:"10" validate:"gte=0"`
	MaxSeconds int `yaml:"max_seconds" mapstructure:"max_seconds" default:"3600" validate:"gte=0"`
}

// SegmentDurationLimitCheck checks that effective segment durations stay within limits.
type SegmentDurationLimitCheck struct {
	config *SegmentDurationLimitConfig
}

// NewSegmentDurationLimitCheck creates a new segment duration limit check.
func NewSegmentDurationLimitCheck() *SegmentDurationLimitCheck {
	return &SegmentDurationLimitCheck{}
}

func (c *SegmentDurationLimitCheck) Name() string {
	return "segment_duration_limit"
}

func (c *SegmentDurationLimitCheck) Description() string {
	return "Checks that segment durations are within allowed limits"
}

func (c *SegmentDurationLimitCheck) Codes() []string {
	return []string{"segment_too_short", "segment_too_long"}
}

func (c *SegmentDurationLimitCheck) ValidateConfig(settings map[string]any) error {
	var config SegmentDurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	// min_seconds cannot be greater than max_seconds
	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.New("min_seconds cannot be greater than max_seconds")
	}
	c.config = &config
	zlog.Debug().Msgf("segment duration limit check config: %+v", config)
	return nil
}

func (c *SegmentDurationLimitCheck) Run(p *plan.Plan) []Finding {
	// If config is not set, nothing to check
	if c.config == nil {
		return nil
	}

	var findings []Finding
	for i := range p.Segments {
		seg := &p.Segments[i]
		d := seg.EffectiveDuration()
		switch {
		case d < c.config.MinSeconds:
			findings = append(findings, Finding{
				Code:            "segment_too_short",
				SegmentIndex:    i,
				SubSegmentIndex: -1,
				Message:         fmt.Sprintf("%q lasts %ds, minimum is %ds", seg.Name, d, c.config.MinSeconds),
			})
		case c.config.MaxSeconds > 0 && d > c.config.MaxSeconds:
			findings = append(findings, Finding{
				Code:            "segment_too_long",
				SegmentIndex:    i,
				SubSegmentIndex: -1,
				Message:         fmt.Sprintf("%q lasts %ds, maximum is %ds", seg.Name, d, c.config.MaxSeconds),
			})
		}
	}
	return findings
}

func init() {
	Register("segment_duration_limit", func() Check {
		return &SegmentDurationLimitCheck{}
	})
}
