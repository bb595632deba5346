package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

type fakeWebAPI struct {
	mu      sync.Mutex
	created map[string]any
	added   [][]string
	queries []string
}

func (f *fakeWebAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/search":
		f.queries = append(f.queries, r.URL.Query().Get("q")+"|"+r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"tracks":{"items":[
			{"id":"t1","uri":"spotify:track:t1","name":"Eye of the Tiger","duration_ms":245000,
			 "artists":[{"name":"Survivor"}],"album":{"name":"Eye of the Tiger"}}
		]}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/me":
		_, _ = w.Write([]byte(`{"id":"coach"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/users/coach/playlists":
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pl1","name":"Cycle Class: Hills","external_urls":{"spotify":"https://open.spotify.com/playlist/pl1"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/playlists/pl1/tracks":
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.added = append(f.added, body.URIs)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"snapshot_id":"snap"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"message":"not found"}}`))
	}
}

func newWebTestClient(t *testing.T) (*Client, *fakeWebAPI) {
	t.Helper()
	fake := &fakeWebAPI{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	c := newClient(spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/")), Config{Market: "JP"})
	c.retryDelay = time.Millisecond
	return c, fake
}

func TestClient_SearchTracks(t *testing.T) {
	c, fake := newWebTestClient(t)

	tracks, err := c.SearchTracks(context.Background(), "Eye of the Tiger Survivor", 500)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "spotify:track:t1", tracks[0].URI)
	assert.Equal(t, "Eye of the Tiger - Survivor", tracks[0].Song())
	assert.Equal(t, []string{"Eye of the Tiger Survivor|50"}, fake.queries)

	_, err = c.SearchTracks(context.Background(), "", 10)
	assert.Error(t, err)
}

func TestClient_CreatePlaylist(t *testing.T) {
	c, fake := newWebTestClient(t)

	pl, err := c.CreatePlaylist(context.Background(), "Cycle Class: Hills", "Generated playlist for 45 minute cycle class", false)
	require.NoError(t, err)
	assert.Equal(t, "pl1", pl.ID)
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", pl.URL)
	assert.Equal(t, "Cycle Class: Hills", fake.created["name"])
	assert.Equal(t, false, fake.created["public"])
}

func TestClient_AddTracksToPlaylistBatches(t *testing.T) {
	c, fake := newWebTestClient(t)

	uris := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		uris = append(uris, "spotify:track:t"+string(rune('a'+i%26)))
	}
	require.NoError(t, c.AddTracksToPlaylist(context.Background(), "spotify:playlist:pl1", uris))

	require.Len(t, fake.added, 2)
	assert.Len(t, fake.added[0], 100)
	assert.Len(t, fake.added[1], 50)
	assert.Equal(t, "spotify:track:ta", fake.added[0][0])
}

func TestClient_AddTracksToPlaylistUnknown(t *testing.T) {
	c, _ := newWebTestClient(t)

	err := c.AddTracksToPlaylist(context.Background(), "missing", []string{"spotify:track:a"})
	assert.Error(t, err)
}
