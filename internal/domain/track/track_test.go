package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrack_Song(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{
			name:     "single artist",
			track:    Track{Name: "Titanium", Artists: []string{"David Guetta"}},
			expected: "Titanium - David Guetta",
		},
		{
			name:     "multiple artists",
			track:    Track{Name: "Titanium", Artists: []string{"David Guetta", "Sia"}},
			expected: "Titanium - David Guetta, Sia",
		},
		{
			name:     "no artists",
			track:    Track{Name: "Untitled"},
			expected: "Untitled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.Song())
		})
	}
}

func TestTrack_DurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected int
	}{
		{name: "whole seconds", duration: 3 * time.Minute, expected: 180},
		{name: "fraction truncated", duration: 2*time.Minute + 1500*time.Millisecond, expected: 121},
		{name: "negative", duration: -time.Second, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Track{Duration: tt.duration}
			assert.Equal(t, tt.expected, tr.DurationSeconds())
		})
	}
}

func TestAudioFeatures_HasTempo(t *testing.T) {
	var missing *AudioFeatures
	assert.False(t, missing.HasTempo())
	assert.False(t, (&AudioFeatures{Energy: 0.5}).HasTempo())
	assert.True(t, (&AudioFeatures{Tempo: 128}).HasTempo())
}
