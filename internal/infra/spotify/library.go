package spotify

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/track"
)

// addTracksBatchSize is the Spotify limit for tracks per add request.
const addTracksBatchSize = 100

// SearchTracks searches for tracks matching query. limit is clamped to 1..50.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}
	limit = min(max(limit, 1), 50)

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(limit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result.Tracks == nil {
		return nil, nil
	}

	tracks := make([]track.Track, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		tracks = append(tracks, *c.convertTrack(&result.Tracks.Tracks[i]))
	}
	return tracks, nil
}

// CreatePlaylist creates an empty playlist owned by the current user.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (*playlist.Playlist, error) {
	var user *spotify.PrivateUser
	err := c.retry(ctx, func() error {
		u, err := c.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get current user")
	}

	var created *spotify.FullPlaylist
	err = c.retry(ctx, func() error {
		p, err := c.client.CreatePlaylistForUser(ctx, user.ID, name, description, public, false)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create playlist")
	}

	url := created.ExternalURLs["spotify"]
	if url == "" {
		url = c.GetPlaylistURL(string(created.ID))
	}
	zlog.Info().Str("playlist_id", string(created.ID)).Str("name", created.Name).Msg("playlist created")

	return &playlist.Playlist{
		ID:          string(created.ID),
		Name:        created.Name,
		Description: created.Description,
		URL:         url,
	}, nil
}

// AddTracksToPlaylist appends tracks given as IDs, URLs or URIs, in batches.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error {
	ids := make([]spotify.ID, 0, len(trackURIs))
	for _, uri := range trackURIs {
		ids = append(ids, spotify.ID(extractTrackID(uri)))
	}

	for i := 0; i < len(ids); i += addTracksBatchSize {
		batch := ids[i:min(i+addTracksBatchSize, len(ids))]
		err := c.retry(ctx, func() error {
			_, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(extractPlaylistID(playlistID)), batch...)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "failed to add tracks to playlist")
		}
	}
	return nil
}
