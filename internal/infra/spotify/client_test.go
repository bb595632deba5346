package spotify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

type fakeAPI struct {
	calls        []string
	playlist     *spotify.FullPlaylist
	items        []spotify.PlaylistItem
	devices      []spotify.PlayerDevice
	featureBatch []int
	failures     int
	failErr      error
}

func (f *fakeAPI) fail() error {
	if f.failures > 0 {
		f.failures--
		return f.failErr
	}
	return nil
}

func (f *fakeAPI) GetPlaylist(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.FullPlaylist, error) {
	f.calls = append(f.calls, "playlist "+string(id))
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.playlist, nil
}

func (f *fakeAPI) GetPlaylistItems(_ context.Context, id spotify.ID, _ ...spotify.RequestOption) (*spotify.PlaylistItemPage, error) {
	f.calls = append(f.calls, "items "+string(id))
	return &spotify.PlaylistItemPage{Items: f.items}, nil
}

func (f *fakeAPI) GetAudioFeatures(_ context.Context, ids ...spotify.ID) ([]*spotify.AudioFeatures, error) {
	f.featureBatch = append(f.featureBatch, len(ids))
	out := make([]*spotify.AudioFeatures, 0, len(ids))
	for _, id := range ids {
		if id == "missing" {
			out = append(out, nil)
			continue
		}
		out = append(out, &spotify.AudioFeatures{ID: id, Energy: 0.75, Tempo: 128})
	}
	return out, nil
}

func (f *fakeAPI) PlayerDevices(context.Context) ([]spotify.PlayerDevice, error) {
	return f.devices, nil
}

func (f *fakeAPI) TransferPlayback(_ context.Context, id spotify.ID, play bool) error {
	f.calls = append(f.calls, fmt.Sprintf("transfer %s %t", id, play))
	return nil
}

func deviceOf(opt *spotify.PlayOptions) string {
	if opt == nil || opt.DeviceID == nil {
		return "-"
	}
	return string(*opt.DeviceID)
}

func (f *fakeAPI) PlayOpt(_ context.Context, opt *spotify.PlayOptions) error {
	f.calls = append(f.calls, fmt.Sprintf("play %s %v", deviceOf(opt), opt.URIs))
	return f.fail()
}

func (f *fakeAPI) PauseOpt(_ context.Context, opt *spotify.PlayOptions) error {
	f.calls = append(f.calls, "pause "+deviceOf(opt))
	return nil
}

func (f *fakeAPI) SeekOpt(_ context.Context, position int, opt *spotify.PlayOptions) error {
	f.calls = append(f.calls, fmt.Sprintf("seek %s %d", deviceOf(opt), position))
	return nil
}

func (f *fakeAPI) VolumeOpt(_ context.Context, percent int, opt *spotify.PlayOptions) error {
	f.calls = append(f.calls, fmt.Sprintf("volume %s %d", deviceOf(opt), percent))
	return nil
}

func (f *fakeAPI) Search(context.Context, string, spotify.SearchType, ...spotify.RequestOption) (*spotify.SearchResult, error) {
	return nil, errors.New("search not faked")
}

func (f *fakeAPI) CurrentUser(context.Context) (*spotify.PrivateUser, error) {
	return nil, errors.New("current user not faked")
}

func (f *fakeAPI) CreatePlaylistForUser(context.Context, string, string, string, bool, bool) (*spotify.FullPlaylist, error) {
	return nil, errors.New("create playlist not faked")
}

func (f *fakeAPI) AddTracksToPlaylist(context.Context, spotify.ID, ...spotify.ID) (string, error) {
	return "", errors.New("add tracks not faked")
}

func newTestClient(a api) *Client {
	c := newClient(a, Config{})
	c.retryDelay = time.Millisecond
	return c
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Plain playlist ID",
			input:    "37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "HTTP URL (not HTTPS)",
			input:    "http://open.spotify.com/playlist/testID",
			expected: "testID",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/playlist/abc123",
			expected: "abc123",
		},
		{
			name:     "URL with multiple query params",
			input:    "https://open.spotify.com/playlist/abc123?si=xyz&utm_source=copy",
			expected: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractPlaylistID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractPlaylistID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "URI", input: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", expected: "4uLU6hMCjMI75M1A2tKUQC"},
		{name: "URL", input: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=1", expected: "4uLU6hMCjMI75M1A2tKUQC"},
		{name: "plain", input: " 4uLU6hMCjMI75M1A2tKUQC ", expected: "4uLU6hMCjMI75M1A2tKUQC"},
		{name: "playlist URI is not a track", input: "spotify:playlist:abc", expected: "spotify:playlist:abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTrackID(tt.input))
		})
	}
}

func TestClient_GetPlaylist(t *testing.T) {
	fake := &fakeAPI{
		playlist: &spotify.FullPlaylist{SimplePlaylist: spotify.SimplePlaylist{Name: "Friday Ride"}},
		items: []spotify.PlaylistItem{
			{Track: spotify.PlaylistItemTrack{Track: &spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{
				ID:       "t1",
				Name:     "Song One",
				Artists:  []spotify.SimpleArtist{{Name: "Band"}},
				Duration: 200000,
			}}}},
			{Track: spotify.PlaylistItemTrack{}},
		},
		failures: 1,
		failErr:  errors.New("503 Service Unavailable"),
	}
	c := newTestClient(fake)

	p, err := c.GetPlaylist(context.Background(), "https://open.spotify.com/playlist/pl1?si=x")
	require.NoError(t, err)

	assert.Equal(t, "pl1", p.ID)
	assert.Equal(t, "Friday Ride", p.Name)
	require.Len(t, p.Tracks, 1)
	assert.Equal(t, "spotify:track:t1", p.Tracks[0].URI)
	assert.Equal(t, 200*time.Second, p.Tracks[0].Duration)
	assert.Equal(t, []string{"playlist pl1", "playlist pl1", "items pl1"}, fake.calls)
}

func TestClient_GetPlaylistNotRetryable(t *testing.T) {
	fake := &fakeAPI{failures: 1, failErr: errors.New("404 not found")}
	c := newTestClient(fake)

	_, err := c.GetPlaylist(context.Background(), "spotify:playlist:pl1")
	assert.Error(t, err)
	assert.Equal(t, []string{"playlist pl1"}, fake.calls)
}

func TestClient_GetAudioFeaturesBatches(t *testing.T) {
	ids := make([]string, 0, 150)
	for i := 0; i < 149; i++ {
		ids = append(ids, fmt.Sprintf("id%d", i))
	}
	ids = append(ids, "missing")

	fake := &fakeAPI{}
	c := newTestClient(fake)

	features, err := c.GetAudioFeatures(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 50}, fake.featureBatch)
	assert.Len(t, features, 149)
	assert.InDelta(t, 0.75, features["id3"].Energy, 1e-6)
	assert.InDelta(t, 128, features["id3"].Tempo, 1e-6)
	_, ok := features["missing"]
	assert.False(t, ok)
}

func TestClient_FindDevice(t *testing.T) {
	fake := &fakeAPI{devices: []spotify.PlayerDevice{
		{ID: "d1", Name: "Studio Speaker"},
		{ID: "d2", Name: "Phone", Active: true},
	}}
	c := newTestClient(fake)
	ctx := context.Background()

	id, err := c.FindDevice(ctx, "studio speaker")
	require.NoError(t, err)
	assert.Equal(t, "d1", id)

	id, err = c.FindDevice(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "d2", id)

	_, err = c.FindDevice(ctx, "Bike")
	assert.Error(t, err)
}
