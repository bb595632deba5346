// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a Spotify track entity.
// Contains only information retrieved from Spotify API.
type Track struct {
	ID       string        // Spotify Track ID
	URI      string        // Spotify URI (spotify:track:ID)
	Name     string        // Track name
	Artists  []string      // Artist names
	Album    string        // Album name
	Duration time.Duration // Track duration
	URL      string        // Spotify URL
	Explicit bool          // Explicit content flag
}

// AudioFeatures holds the audio analysis values used to shape a segment.
type AudioFeatures struct {
	TrackID string
	Energy  float64 // 0.0 - 1.0
	Tempo   float64 // BPM, 0 if unknown
	Source  string  // "spotify" or "getsongbpm"
}

// HasTempo reports whether a tempo is known.
func (f *AudioFeatures) HasTempo() bool {
	return f != nil && f.Tempo > 0
}

// Artist returns the artist names joined for display.
func (t *Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// Song returns the "Title - Artist" label used in plans.
func (t *Track) Song() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Name + " - " + t.Artist()
}

// DurationSeconds returns the whole seconds of the track, never negative.
func (t *Track) DurationSeconds() int {
	if t.Duration < 0 {
		return 0
	}
	return int(t.Duration / time.Second)
}
