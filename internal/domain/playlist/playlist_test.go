package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/spinbox/internal/domain/track"
)

func TestPlaylist(t *testing.T) {
	tests := []struct {
		name        string
		playlist    Playlist
		wantIDs     []string
		wantRuntime time.Duration
		wantTheme   string
	}{
		{
			name:        "created, no tracks yet",
			playlist:    Playlist{ID: "new"},
			wantIDs:     []string{},
			wantRuntime: 0,
			wantTheme:   "Spotify Playlist",
		},
		{
			name: "class playlist",
			playlist: Playlist{Name: "Friday Climb", Tracks: []track.Track{
				{ID: "warm", Duration: 3*time.Minute + 500*time.Millisecond},
				{ID: "climb", Duration: 4*time.Minute + 500*time.Millisecond},
			}},
			wantIDs:     []string{"warm", "climb"},
			wantRuntime: 7*time.Minute + time.Second,
			wantTheme:   "Friday Climb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIDs, tt.playlist.TrackIDs())
			assert.Equal(t, tt.wantRuntime, tt.playlist.Runtime())
			assert.Equal(t, tt.wantTheme, tt.playlist.Theme())
		})
	}
}
