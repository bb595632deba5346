package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestSegment_EffectiveDuration(t *testing.T) {
	tests := []struct {
		name         string
		segment      Segment
		expected     int
		wantMismatch bool
	}{
		{
			name:     "no sub-segments",
			segment:  Segment{Name: "Warm-Up", DurationSeconds: 300},
			expected: 300,
		},
		{
			name: "sub-segments match declared duration",
			segment: Segment{
				Name:            "Intervals",
				DurationSeconds: 30,
				SubSegments: []SubSegment{
					{Name: "Work", DurationSeconds: 20},
					{Name: "Rest", DurationSeconds: 10},
				},
			},
			expected: 30,
		},
		{
			name: "sub-segment sum wins on mismatch",
			segment: Segment{
				Name:            "Climb",
				DurationSeconds: 60,
				SubSegments: []SubSegment{
					{Name: "Seated", DurationSeconds: 30},
					{Name: "Standing", DurationSeconds: 45},
				},
			},
			expected:     75,
			wantMismatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.segment.EffectiveDuration())
			assert.Equal(t, tt.wantMismatch, tt.segment.HasDurationMismatch())
		})
	}
}

func TestSegment_Music(t *testing.T) {
	seg := Segment{
		Name:             "Sprint",
		SpotifyURI:       "spotify:track:abc",
		Song:             "Song - Artist",
		SongStartSeconds: 15,
		SongEndSeconds:   intPtr(90),
		FadeOut:          true,
	}

	m, ok := seg.Music()
	require.True(t, ok)
	assert.Equal(t, "spotify:track:abc", m.URI)
	assert.Equal(t, 15, m.StartSeconds)
	require.NotNil(t, m.EndSeconds)
	assert.Equal(t, 90, *m.EndSeconds)
	assert.True(t, m.FadeOut)

	_, ok = (&Segment{Name: "Silent"}).Music()
	assert.False(t, ok)
}

func TestSegment_MusicStart(t *testing.T) {
	assert.Equal(t, 0, (&Segment{}).MusicStart())
	assert.Equal(t, 12, (&Segment{SongStartSeconds: 12}).MusicStart())
	assert.Equal(t, 0, (&Segment{SongStartSeconds: -4}).MusicStart())
}

func TestPlan_TotalSeconds(t *testing.T) {
	p := &Plan{
		Segments: []Segment{
			{Name: "A", DurationSeconds: 60},
			{Name: "B", DurationSeconds: 10, SubSegments: []SubSegment{
				{Name: "B1", DurationSeconds: 15},
				{Name: "B2", DurationSeconds: 15},
			}},
		},
	}
	assert.Equal(t, 90, p.TotalSeconds())
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{
			name: "valid plan",
			plan: Plan{
				Theme:    "Hill Day",
				Segments: []Segment{{Name: "Warm-Up", DurationSeconds: 300, Intensity: IntensityLow}},
			},
		},
		{
			name:    "no segments",
			plan:    Plan{Theme: "Empty"},
			wantErr: true,
		},
		{
			name: "segment without name",
			plan: Plan{
				Segments: []Segment{{DurationSeconds: 60}},
			},
			wantErr: true,
		},
		{
			name: "negative duration",
			plan: Plan{
				Segments: []Segment{{Name: "Broken", DurationSeconds: -1}},
			},
			wantErr: true,
		},
		{
			name: "unknown intensity is accepted",
			plan: Plan{
				Segments: []Segment{{Name: "Odd", DurationSeconds: 30, Intensity: "extreme"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIntensityAndPosition_Valid(t *testing.T) {
	assert.True(t, IntensityHigh.Valid())
	assert.False(t, Intensity("max").Valid())
	assert.True(t, PositionStanding.Valid())
	assert.False(t, Position("hover").Valid())
}

func TestPlan_SpotifyURIs(t *testing.T) {
	p := &Plan{Segments: []Segment{
		{Name: "Warm-Up", SpotifyURI: "spotify:track:a"},
		{Name: "Talk"},
		{Name: "Climb", SpotifyURI: "spotify:track:b"},
		{Name: "Reprise", SpotifyURI: "spotify:track:a"},
	}}
	assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, p.SpotifyURIs())
	assert.Empty(t, (&Plan{Segments: []Segment{{Name: "Talk"}}}).SpotifyURIs())
}
