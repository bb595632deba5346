// Package playlist holds Spotify playlists as the planner reads them and the
// exporter writes them.
package playlist

import (
	"time"

	"github.com/osa030/spinbox/internal/domain/track"
)

// Playlist is a Spotify playlist with its tracks in playback order.
// Tracks is empty for a playlist that was just created.
type Playlist struct {
	ID          string
	Name        string
	Description string
	URL         string
	Tracks      []track.Track
}

// TrackIDs returns the track IDs in playback order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i := range p.Tracks {
		ids[i] = p.Tracks[i].ID
	}
	return ids
}

// Runtime is the summed length of every track.
func (p *Playlist) Runtime() time.Duration {
	var d time.Duration
	for i := range p.Tracks {
		d += p.Tracks[i].Duration
	}
	return d
}

// Theme names a plan built from this playlist.
func (p *Playlist) Theme() string {
	if p.Name == "" {
		return "Spotify Playlist"
	}
	return p.Name
}
