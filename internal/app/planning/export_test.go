package planning

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/spinbox/internal/domain/plan"
	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/track"
)

type fakeWriter struct {
	name        string
	description string
	public      bool
	added       []string
	addErr      error
}

func (f *fakeWriter) CreatePlaylist(_ context.Context, name, description string, public bool) (*playlist.Playlist, error) {
	f.name, f.description, f.public = name, description, public
	return &playlist.Playlist{ID: "pl1", Name: name, URL: "https://open.spotify.com/playlist/pl1"}, nil
}

func (f *fakeWriter) AddTracksToPlaylist(_ context.Context, _ string, uris []string) error {
	f.added = append(f.added, uris...)
	return f.addErr
}

type fakeSearcher struct {
	results map[string]string
	queries []string
}

func (f *fakeSearcher) SearchTracks(_ context.Context, query string, _ int) ([]track.Track, error) {
	f.queries = append(f.queries, query)
	if strings.Contains(query, "broken") {
		return nil, errors.New("search unavailable")
	}
	uri, ok := f.results[query]
	if !ok {
		return nil, nil
	}
	return []track.Track{{URI: uri}}, nil
}

func TestExportPlaylist(t *testing.T) {
	p := &plan.Plan{
		Theme:                "Hills",
		TotalDurationMinutes: 45,
		Segments: []plan.Segment{
			{Name: "Warm-Up", SpotifyURI: "spotify:track:a"},
			{Name: "Climb", SpotifyURI: "spotify:track:b"},
			{Name: "Climb again", SpotifyURI: "spotify:track:a"},
			{Name: "Talk"},
		},
	}
	w := &fakeWriter{}

	export, err := ExportPlaylist(context.Background(), w, p, true)
	require.NoError(t, err)
	assert.Equal(t, "Cycle Class: Hills", w.name)
	assert.Equal(t, "Generated playlist for 45 minute cycle class", w.description)
	assert.True(t, w.public)
	assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, w.added)
	assert.Equal(t, 2, export.TracksAdded)
	assert.Equal(t, "pl1", export.Playlist.ID)
}

func TestExportPlaylist_Errors(t *testing.T) {
	_, err := ExportPlaylist(context.Background(), &fakeWriter{}, &plan.Plan{Segments: []plan.Segment{{Name: "Talk"}}}, false)
	assert.ErrorIs(t, err, ErrNoTracks)

	w := &fakeWriter{addErr: errors.New("forbidden")}
	_, err = ExportPlaylist(context.Background(), w, &plan.Plan{Segments: []plan.Segment{{Name: "Song", SpotifyURI: "spotify:track:a", DurationSeconds: 90}}}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pl1")
	assert.Equal(t, "Cycle Class: Cycle Class", w.name)
	assert.Equal(t, "Generated playlist for 2 minute cycle class", w.description)
}

func TestResolveSongs(t *testing.T) {
	p := &plan.Plan{Segments: []plan.Segment{
		{Name: "Warm-Up", Song: "Eye of the Tiger - Survivor"},
		{Name: "Linked", Song: "Titanium - David Guetta", SpotifyURI: "spotify:track:keep"},
		{Name: "Unknown", Song: "Nothing Like It - Nobody"},
		{Name: "Broken", Song: "broken - search"},
		{Name: "Quiet"},
	}}
	s := &fakeSearcher{results: map[string]string{"Eye of the Tiger - Survivor": "spotify:track:tiger"}}

	assert.Equal(t, 1, ResolveSongs(context.Background(), s, p))
	assert.Equal(t, "spotify:track:tiger", p.Segments[0].SpotifyURI)
	assert.Equal(t, "spotify:track:keep", p.Segments[1].SpotifyURI)
	assert.Empty(t, p.Segments[2].SpotifyURI)
	assert.Equal(t, []string{"Eye of the Tiger - Survivor", "Nothing Like It - Nobody", "broken - search"}, s.queries)
}
