package songbpm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	client, err := New(Config{APIKey: "k", BaseURL: "http://example.test/"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", client.baseURL)
}

func TestSearch(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/search/", r.URL.Path)
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "song", r.URL.Query().Get("type"))
		assert.Equal(t, "Levels Avicii", r.URL.Query().Get("lookup"))

		response := `{
			"search": [
				{"id": "abc", "title": "Levels", "tempo": "126", "key_of": "C#m", "artist": {"name": "Avicii"}},
				{"id": "def", "title": "Levels (Remix)", "tempo": "128", "artist": {"name": "Avicii"}}
			]
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key", BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()
	song, err := client.Search(ctx, "Levels", "Avicii")
	require.NoError(t, err)
	require.NotNil(t, song)
	assert.Equal(t, "abc", song.ID)
	assert.Equal(t, 126.0, song.Tempo)
	assert.Equal(t, "C#m", song.Key)
	assert.Equal(t, "Levels - Avicii (126 bpm)", song.String())

	// Cached, including case differences
	tempo, ok, err := client.Tempo(ctx, "levels", "avicii")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 126.0, tempo)
	assert.Equal(t, int32(1), requests.Load())
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search": {"error": "no result"}}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	song, err := client.Search(context.Background(), "Unknown", "Nobody")
	require.NoError(t, err)
	assert.Nil(t, song)

	_, ok, err := client.Tempo(context.Background(), "Unknown", "Nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "invalid api key"}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "Song", "Artist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")

	_, err = client.Search(context.Background(), "", "Artist")
	assert.Error(t, err)
}

func TestGetSong(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/song/", r.URL.Path)
		if r.URL.Query().Get("id") != "abc" {
			fmt.Fprint(w, `{"song": {}}`)
			return
		}
		fmt.Fprint(w, `{"song": {"id": "abc", "title": "Levels", "tempo": "126", "artist": {"name": "Avicii"}}}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	song, err := client.GetSong(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Avicii", song.Artist)

	_, err = client.GetSong(context.Background(), "zzz")
	assert.Error(t, err)
}
