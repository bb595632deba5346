// Package plan provides the workout Plan domain entity.
package plan

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Intensity represents the effort level of a segment.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Valid reports whether the intensity is one of the known levels.
func (i Intensity) Valid() bool {
	switch i {
	case IntensityLow, IntensityMedium, IntensityHigh:
		return true
	default:
		return false
	}
}

// Position represents the rider position tag of a segment.
type Position string

const (
	PositionSeated   Position = "seated"
	PositionStanding Position = "standing"
)

// Valid reports whether the position is one of the known tags.
func (p Position) Valid() bool {
	return p == PositionSeated || p == PositionStanding
}

// Plan represents a complete workout plan. It is read-only once loaded.
type Plan struct {
	Theme                string    `json:"theme" yaml:"theme"`
	TotalDurationMinutes int       `json:"total_duration_minutes" yaml:"total_duration_minutes" validate:"gte=0"`
	Segments             []Segment `json:"segments" yaml:"segments" validate:"required,min=1,dive"`
	Notes                string    `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Segment represents a named, timed block of the workout.
// Music fields are flat to match the plans API wire format.
type Segment struct {
	Name              string       `json:"name" yaml:"name" validate:"required"`
	DurationSeconds   int          `json:"duration_seconds" yaml:"duration_seconds" validate:"gte=0"`
	Intensity         Intensity    `json:"intensity" yaml:"intensity"`
	Position          Position     `json:"position" yaml:"position"`
	Description       string       `json:"description" yaml:"description"`
	SuggestedBPMRange string       `json:"suggested_bpm_range,omitempty" yaml:"suggested_bpm_range,omitempty"`
	Song              string       `json:"song,omitempty" yaml:"song,omitempty"`
	SpotifyURI        string       `json:"spotify_uri,omitempty" yaml:"spotify_uri,omitempty"`
	SongStartSeconds  int          `json:"song_start_seconds" yaml:"song_start_seconds" validate:"gte=0"`
	SongEndSeconds    *int         `json:"song_end_seconds,omitempty" yaml:"song_end_seconds,omitempty"`
	FadeOut           bool         `json:"fade_out" yaml:"fade_out"`
	SubSegments       []SubSegment `json:"sub_segments,omitempty" yaml:"sub_segments,omitempty" validate:"dive"`
}

// SubSegment is a finer-grained block within a Segment.
// It inherits the parent's music.
type SubSegment struct {
	Name              string    `json:"name" yaml:"name" validate:"required"`
	DurationSeconds   int       `json:"duration_seconds" yaml:"duration_seconds" validate:"gte=0"`
	Intensity         Intensity `json:"intensity" yaml:"intensity"`
	Position          Position  `json:"position" yaml:"position"`
	Description       string    `json:"description" yaml:"description"`
	SuggestedBPMRange string    `json:"suggested_bpm_range,omitempty" yaml:"suggested_bpm_range,omitempty"`
}

// Music is the music reference of a segment.
type Music struct {
	URI          string // Spotify track URI
	Song         string // "Title - Artist"
	StartSeconds int    // Offset into the track where the segment starts
	EndSeconds   *int   // Offset where the song must stop (nil = play through)
	FadeOut      bool   // Fade out over the final seconds
}

// HasSubSegments returns true if the segment is split into sub-segments.
func (s *Segment) HasSubSegments() bool {
	return len(s.SubSegments) > 0
}

// SubSegmentTotal returns the sum of all sub-segment durations.
func (s *Segment) SubSegmentTotal() int {
	total := 0
	for _, sub := range s.SubSegments {
		total += sub.DurationSeconds
	}
	return total
}

// EffectiveDuration returns the duration used for timing.
// When sub-segments exist their sum wins over the declared duration.
func (s *Segment) EffectiveDuration() int {
	if s.HasSubSegments() {
		return s.SubSegmentTotal()
	}
	return s.DurationSeconds
}

// HasDurationMismatch reports whether the sub-segment sum disagrees with the declared duration.
func (s *Segment) HasDurationMismatch() bool {
	return s.HasSubSegments() && s.SubSegmentTotal() != s.DurationSeconds
}

// Music returns the segment's music reference, if a track is configured.
func (s *Segment) Music() (Music, bool) {
	if s.SpotifyURI == "" {
		return Music{}, false
	}
	return Music{
		URI:          s.SpotifyURI,
		Song:         s.Song,
		StartSeconds: s.SongStartSeconds,
		EndSeconds:   s.SongEndSeconds,
		FadeOut:      s.FadeOut,
	}, true
}

// MusicStart returns the configured music start offset in seconds (0 if absent).
func (s *Segment) MusicStart() int {
	if s.SongStartSeconds < 0 {
		return 0
	}
	return s.SongStartSeconds
}

// TotalSeconds returns the sum of effective durations of all segments.
func (p *Plan) TotalSeconds() int {
	total := 0
	for i := range p.Segments {
		total += p.Segments[i].EffectiveDuration()
	}
	return total
}

// SpotifyURIs returns each segment's track URI once, in segment order.
func (p *Plan) SpotifyURIs() []string {
	seen := make(map[string]bool)
	var uris []string
	for i := range p.Segments {
		uri := p.Segments[i].SpotifyURI
		if uri == "" || seen[uri] {
			continue
		}
		seen[uri] = true
		uris = append(uris, uri)
	}
	return uris
}

// Validate validates the plan structure.
// Unknown intensity or position tags are not rejected here; plan checks report them.
func (p *Plan) Validate() error {
	if len(p.Segments) == 0 {
		return errors.New("plan must contain at least one segment")
	}
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, "plan validation failed")
	}
	return nil
}
