package check

import (
	"fmt"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// MusicWindowConfig represents the configuration for MusicWindowCheck.
type MusicWindowConfig struct {
	MaxStartSeconds int `yaml:"max_start_seconds" mapstructure:"max_start_seconds" default:"900" validate:"gte=0"`
}

// MusicWindowCheck checks the configured song window of each segment.
type MusicWindowCheck struct {
	config *MusicWindowConfig
}

func (c *MusicWindowCheck) Name() string {
	return "music_window"
}

func (c *MusicWindowCheck) Description() string {
	return "Checks song start/end offsets and fade-out settings"
}

func (c *MusicWindowCheck) Codes() []string {
	return []string{"song_end_before_start", "song_start_too_late", "song_ends_before_segment", "fade_without_music"}
}

func (c *MusicWindowCheck) ValidateConfig(settings map[string]any) error {
	var config MusicWindowConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	c.config = &config
	return nil
}

func (c *MusicWindowCheck) Run(p *plan.Plan) []Finding {
	var findings []Finding
	add := func(i int, code, format string, args ...any) {
		findings = append(findings, Finding{
			Code:            code,
			SegmentIndex:    i,
			SubSegmentIndex: -1,
			Message:         fmt.Sprintf(format, args...),
		})
	}

	for i := range p.Segments {
		seg := &p.Segments[i]
		m, ok := seg.Music()
		if !ok {
			if seg.FadeOut {
				add(i, "fade_without_music", "%q enables fade-out without a track", seg.Name)
			}
			continue
		}

		if c.config != nil && m.StartSeconds > c.config.MaxStartSeconds {
			add(i, "song_start_too_late", "%q starts its song at %ds", seg.Name, m.StartSeconds)
		}
		if m.EndSeconds == nil {
			continue
		}
		window := *m.EndSeconds - seg.MusicStart()
		switch {
		case window <= 0:
			add(i, "song_end_before_start", "%q song ends at %ds, before its start at %ds", seg.Name, *m.EndSeconds, m.StartSeconds)
		case window < seg.EffectiveDuration():
			add(i, "song_ends_before_segment", "%q song stops %ds before the segment ends", seg.Name, seg.EffectiveDuration()-window)
		}
	}
	return findings
}

func init() {
	Register("music_window", func() Check {
		return &MusicWindowCheck{}
	})
}
