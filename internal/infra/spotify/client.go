// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/track"
)

// audioFeaturesBatchSize is the Spotify limit for ids per audio-features request.
const audioFeaturesBatchSize = 100

// Scopes are the OAuth scopes needed to read and export playlists and control playback.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// api is the subset of the zmb3 client used here.
type api interface {
	GetPlaylist(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.FullPlaylist, error)
	GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
	GetAudioFeatures(ctx context.Context, ids ...spotify.ID) ([]*spotify.AudioFeatures, error)
	PlayerDevices(ctx context.Context) ([]spotify.PlayerDevice, error)
	TransferPlayback(ctx context.Context, deviceID spotify.ID, play bool) error
	PlayOpt(ctx context.Context, opt *spotify.PlayOptions) error
	PauseOpt(ctx context.Context, opt *spotify.PlayOptions) error
	SeekOpt(ctx context.Context, position int, opt *spotify.PlayOptions) error
	VolumeOpt(ctx context.Context, percent int, opt *spotify.PlayOptions) error
	Search(ctx context.Context, query string, t spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error)
	CurrentUser(ctx context.Context) (*spotify.PrivateUser, error)
	CreatePlaylistForUser(ctx context.Context, userID, playlistName, description string, public bool, collaborative bool) (*spotify.FullPlaylist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
}

// Client is a Spotify API client.
type Client struct {
	client     api
	market     string
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	Market            string
	RequestsPerSecond float64 // Request pacing; 0 disables it
	Burst             int
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Create token from refresh token
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, token)

	return newClient(spotify.New(httpClient), cfg), nil
}

func newClient(a api, cfg Config) *Client {
	market := cfg.Market
	if market == "" {
		market = "US"
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return &Client{
		client:     a,
		market:     market,
		limiter:    limiter,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetPlaylist retrieves a playlist and all of its tracks by ID, URL, or URI.
func (c *Client) GetPlaylist(ctx context.Context, playlistURL string) (*playlist.Playlist, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var full *spotify.FullPlaylist
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Market(c.market))
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	tracks, err := c.getPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	return &playlist.Playlist{
		ID:          playlistID,
		Name:        full.Name,
		Description: full.Description,
		URL:         c.GetPlaylistURL(playlistID),
		Tracks:      tracks,
	}, nil
}

// getPlaylistTracks retrieves all tracks from a playlist.
func (c *Client) getPlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	var tracks []track.Track
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only tracks; episodes and local files have no track ID
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, *c.convertTrack(item.Track.Track))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// GetAudioFeatures retrieves energy and tempo for the given track IDs, keyed by track ID.
// Tracks without features are absent from the result. Requests are batched.
func (c *Client) GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]track.AudioFeatures, error) {
	result := make(map[string]track.AudioFeatures, len(trackIDs))

	for i := 0; i < len(trackIDs); i += audioFeaturesBatchSize {
		end := min(i+audioFeaturesBatchSize, len(trackIDs))
		batch := make([]spotify.ID, 0, end-i)
		for _, id := range trackIDs[i:end] {
			batch = append(batch, spotify.ID(extractTrackID(id)))
		}

		var features []*spotify.AudioFeatures
		err := c.retry(ctx, func() error {
			f, err := c.client.GetAudioFeatures(ctx, batch...)
			if err != nil {
				return err
			}
			features = f
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get audio features")
		}

		for _, f := range features {
			if f == nil {
				continue
			}
			result[string(f.ID)] = track.AudioFeatures{
				TrackID: string(f.ID),
				Energy:  float64(f.Energy),
				Tempo:   float64(f.Tempo),
				Source:  "spotify",
			}
		}
	}

	return result, nil
}

// FindDevice returns the ID of the device with the given name,
// or of the active device when name is empty.
func (c *Client) FindDevice(ctx context.Context, name string) (string, error) {
	var devices []spotify.PlayerDevice
	err := c.retry(ctx, func() error {
		d, err := c.client.PlayerDevices(ctx)
		if err != nil {
			return err
		}
		devices = d
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to list devices")
	}

	for _, d := range devices {
		if name == "" && d.Active {
			return string(d.ID), nil
		}
		if name != "" && strings.EqualFold(d.Name, name) {
			return string(d.ID), nil
		}
	}
	if name == "" {
		return "", errors.New("no active spotify device")
	}
	return "", errors.Newf("spotify device not found: %s", name)
}

// GetPlaylistURL returns the Spotify URL for a playlist.
func (c *Client) GetPlaylistURL(playlistID string) string {
	return fmt.Sprintf("https://open.spotify.com/playlist/%s", playlistID)
}

// GetTrackURL returns the Spotify URL for a track.
func (c *Client) GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// convertTrack converts a Spotify FullTrack to domain Track.
func (c *Client) convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	uri := string(t.URI)
	if uri == "" {
		uri = "spotify:track:" + string(t.ID)
	}

	return &track.Track{
		ID:       string(t.ID),
		URI:      uri,
		Name:     t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      c.GetTrackURL(string(t.ID)),
		Explicit: t.Explicit,
	}
}

// retry paces and retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Debug().Err(err).Int("attempt", i+1).Msg("retrying spotify request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:KIND:ID URIs, open.spotify.com URLs (with or
// without an intl-XX segment) and plain IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	sep := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
