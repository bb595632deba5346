package planning

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/plan"
	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/track"
)

// ErrNoTracks is returned when exporting a plan that references no tracks.
var ErrNoTracks = errors.New("no Spotify tracks linked to this plan")

// PlaylistWriter creates playlists and appends tracks to them.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*playlist.Playlist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error
}

// TrackSearcher finds tracks by free text.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// Export is the outcome of ExportPlaylist.
type Export struct {
	Playlist    *playlist.Playlist
	TracksAdded int
}

// ExportPlaylist creates a playlist holding each of the plan's tracks once.
func ExportPlaylist(ctx context.Context, w PlaylistWriter, p *plan.Plan, public bool) (*Export, error) {
	uris := p.SpotifyURIs()
	if len(uris) == 0 {
		return nil, ErrNoTracks
	}

	theme := p.Theme
	if theme == "" {
		theme = "Cycle Class"
	}
	minutes := p.TotalDurationMinutes
	if minutes == 0 {
		minutes = (p.TotalSeconds() + 59) / 60
	}

	pl, err := w.CreatePlaylist(ctx,
		"Cycle Class: "+theme,
		fmt.Sprintf("Generated playlist for %d minute cycle class", minutes),
		public,
	)
	if err != nil {
		return nil, err
	}
	if err := w.AddTracksToPlaylist(ctx, pl.ID, uris); err != nil {
		return nil, errors.Wrapf(err, "playlist %s was created but is incomplete", pl.ID)
	}

	zlog.Info().Str("playlist_id", pl.ID).Int("tracks", len(uris)).Msg("plan exported")
	return &Export{Playlist: pl, TracksAdded: len(uris)}, nil
}

// ResolveSongs fills in the track URI of segments that name a song but have
// none, using the best search match. Failed lookups leave the segment as is.
// It returns the number of segments resolved.
func ResolveSongs(ctx context.Context, s TrackSearcher, p *plan.Plan) int {
	resolved := 0
	for i := range p.Segments {
		seg := &p.Segments[i]
		if seg.Song == "" || seg.SpotifyURI != "" {
			continue
		}
		found, err := s.SearchTracks(ctx, seg.Song, 1)
		if err != nil {
			zlog.Warn().Err(err).Str("song", seg.Song).Msg("song lookup failed")
			continue
		}
		if len(found) == 0 || found[0].URI == "" {
			zlog.Debug().Str("song", seg.Song).Msg("song not found on spotify")
			continue
		}
		seg.SpotifyURI = found[0].URI
		resolved++
	}
	return resolved
}
