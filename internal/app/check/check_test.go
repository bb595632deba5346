package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/spinbox/internal/domain/plan"
)

func intPtr(v int) *int { return &v }

func codes(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"duration_mismatch", "music_window", "segment_duration_limit", "unknown_tag"}, Names())

	registered := GetRegistered()
	for _, name := range []string{"duration_mismatch", "segment_duration_limit", "music_window", "unknown_tag"} {
		factory, ok := registered[name]
		require.True(t, ok, name)
		assert.Equal(t, name, factory().Name())
	}

	_, err := New("no_such_check")
	assert.Error(t, err)
}

func TestDurationMismatchCheck_Run(t *testing.T) {
	p := &plan.Plan{Segments: []plan.Segment{
		{Name: "Flat", DurationSeconds: 60},
		{Name: "Good", DurationSeconds: 30, SubSegments: []plan.SubSegment{{Name: "a", DurationSeconds: 30}}},
		{Name: "Bad", DurationSeconds: 60, SubSegments: []plan.SubSegment{{Name: "a", DurationSeconds: 20}}},
	}}

	findings := (&DurationMismatchCheck{}).Run(p)
	require.Len(t, findings, 1)
	assert.Equal(t, "duration_mismatch", findings[0].Code)
	assert.Equal(t, 2, findings[0].SegmentIndex)
	assert.Contains(t, findings[0].Message, "20s")
}

func TestSegmentDurationLimitCheck_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		wantMin  int
		wantMax  int
	}{
		{name: "defaults", settings: nil, wantMin: 10, wantMax: 3600},
		{name: "custom", settings: map[string]any{"min_seconds": 30, "max_seconds": 600}, wantMin: 30, wantMax: 600},
		{name: "string values", settings: map[string]any{"min_seconds": "45"}, wantMin: 45, wantMax: 3600},
		{name: "min greater than max", settings: map[string]any{"min_seconds": 700, "max_seconds": 600}, wantErr: true},
		{name: "negative", settings: map[string]any{"max_seconds": -5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSegmentDurationLimitCheck()
			err := c.ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMin, c.config.MinSeconds)
			assert.Equal(t, tt.wantMax, c.config.MaxSeconds)
		})
	}
}

func TestSegmentDurationLimitCheck_Run(t *testing.T) {
	tests := []struct {
		name      string
		config    *SegmentDurationLimitConfig
		duration  int
		wantCodes []string
	}{
		{name: "within limits", config: &SegmentDurationLimitConfig{MinSeconds: 30, MaxSeconds: 600}, duration: 120, wantCodes: []string{}},
		{name: "too short", config: &SegmentDurationLimitConfig{MinSeconds: 30, MaxSeconds: 600}, duration: 20, wantCodes: []string{"segment_too_short"}},
		{name: "too long", config: &SegmentDurationLimitConfig{MinSeconds: 30, MaxSeconds: 600}, duration: 601, wantCodes: []string{"segment_too_long"}},
		{name: "exact max", config: &SegmentDurationLimitConfig{MinSeconds: 30, MaxSeconds: 600}, duration: 600, wantCodes: []string{}},
		{name: "no max", config: &SegmentDurationLimitConfig{MinSeconds: 30}, duration: 7200, wantCodes: []string{}},
		{name: "no config", config: nil, duration: 1, wantCodes: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &SegmentDurationLimitCheck{config: tt.config}
			p := &plan.Plan{Segments: []plan.Segment{{Name: "Seg", DurationSeconds: tt.duration}}}
			assert.Equal(t, tt.wantCodes, codes(c.Run(p)))
		})
	}
}

func TestMusicWindowCheck_Run(t *testing.T) {
	tests := []struct {
		name      string
		segment   plan.Segment
		wantCodes []string
	}{
		{
			name:      "no music",
			segment:   plan.Segment{Name: "Quiet", DurationSeconds: 60},
			wantCodes: []string{},
		},
		{
			name:      "fade without music",
			segment:   plan.Segment{Name: "Quiet", DurationSeconds: 60, FadeOut: true},
			wantCodes: []string{"fade_without_music"},
		},
		{
			name:      "play through",
			segment:   plan.Segment{Name: "Song", DurationSeconds: 60, SpotifyURI: "spotify:track:a", SongStartSeconds: 10},
			wantCodes: []string{},
		},
		{
			name:      "end before start",
			segment:   plan.Segment{Name: "Song", DurationSeconds: 60, SpotifyURI: "spotify:track:a", SongStartSeconds: 30, SongEndSeconds: intPtr(20)},
			wantCodes: []string{"song_end_before_start"},
		},
		{
			name:      "song ends early",
			segment:   plan.Segment{Name: "Song", DurationSeconds: 60, SpotifyURI: "spotify:track:a", SongStartSeconds: 10, SongEndSeconds: intPtr(40)},
			wantCodes: []string{"song_ends_before_segment"},
		},
		{
			name:      "start too late",
			segment:   plan.Segment{Name: "Song", DurationSeconds: 60, SpotifyURI: "spotify:track:a", SongStartSeconds: 1000},
			wantCodes: []string{"song_start_too_late"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &MusicWindowCheck{}
			require.NoError(t, c.ValidateConfig(nil))
			p := &plan.Plan{Segments: []plan.Segment{tt.segment}}
			assert.Equal(t, tt.wantCodes, codes(c.Run(p)))
		})
	}
}

func TestUnknownTagCheck_Run(t *testing.T) {
	p := &plan.Plan{Segments: []plan.Segment{
		{Name: "Ok", Intensity: plan.IntensityLow, Position: plan.PositionSeated},
		{Name: "Odd", Intensity: "extreme", SubSegments: []plan.SubSegment{
			{Name: "Hover", Position: "hover"},
		}},
	}}

	findings := (&UnknownTagCheck{}).Run(p)
	require.Len(t, findings, 2)
	assert.Equal(t, "unknown_intensity", findings[0].Code)
	assert.Equal(t, -1, findings[0].SubSegmentIndex)
	assert.Equal(t, "unknown_position", findings[1].Code)
	assert.Equal(t, 0, findings[1].SubSegmentIndex)
	assert.Equal(t, `[unknown_position] segment 1/0: "Hover" has unknown position "hover"`, findings[1].String())
}

func TestBuildChain(t *testing.T) {
	chain, err := BuildChain(map[string]map[string]any{
		"unknown_tag":            nil,
		"duration_mismatch":      nil,
		"segment_duration_limit": {"min_seconds": 30},
	})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, c := range chain.Checks() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"duration_mismatch", "segment_duration_limit", "unknown_tag"}, names)

	p := &plan.Plan{Segments: []plan.Segment{
		{Name: "Short", DurationSeconds: 5, Intensity: "max"},
		{Name: "Split", DurationSeconds: 60, SubSegments: []plan.SubSegment{{Name: "a", DurationSeconds: 40}}},
	}}
	findings := chain.Run(p)
	assert.Equal(t, []string{"duration_mismatch", "segment_too_short", "unknown_intensity"}, codes(findings))
	assert.Equal(t, "duration_mismatch", findings[0].Check)

	_, err = BuildChain(map[string]map[string]any{"nope": nil})
	assert.Error(t, err)

	_, err = BuildChain(map[string]map[string]any{"segment_duration_limit": {"min_seconds": 900, "max_seconds": 60}})
	assert.Error(t, err)
}
