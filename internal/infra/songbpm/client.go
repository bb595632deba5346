// Package songbpm provides a client for the GetSongBPM API.
package songbpm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.getsong.co"

// Client is a GetSongBPM API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Cache of search results keyed by normalized "song|artist"
	tempoCache map[string]*Song
	cacheMu    sync.RWMutex
}

// Config represents GetSongBPM client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Song is the part of a GetSongBPM song record used for planning.
type Song struct {
	ID     string
	Title  string
	Artist string
	Tempo  float64
	Key    string
}

type songRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Tempo  string `json:"tempo"`
	KeyOf  string `json:"key_of"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// searchResponse is the body of /search/. "search" holds an error object
// instead of a list when nothing matches.
type searchResponse struct {
	Search json.RawMessage `json:"search"`
}

type songResponse struct {
	Song songRecord `json:"song"`
}

type apiError struct {
	Error string `json:"error"`
}

// New creates a new GetSongBPM client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("getsongbpm API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tempoCache: make(map[string]*Song),
	}, nil
}

// Search returns the best match for a song and artist, or nil when there is none.
// Results, including misses, are cached.
func (c *Client) Search(ctx context.Context, songName, artistName string) (*Song, error) {
	if songName == "" {
		return nil, errors.New("song name is required")
	}

	cacheKey := strings.ToLower(songName + "|" + artistName)
	c.cacheMu.RLock()
	if song, ok := c.tempoCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached bpm for song: %s - %s", songName, artistName)
		return song, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("type", "song")
	params.Set("lookup", strings.TrimSpace(songName+" "+artistName))

	body, err := c.get(ctx, "/search/", params)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	var records []songRecord
	// A non-list "search" value means no results
	if err := json.Unmarshal(response.Search, &records); err != nil {
		records = nil
	}

	var song *Song
	if len(records) > 0 {
		song = convertSong(records[0])
	}

	c.cacheMu.Lock()
	c.tempoCache[cacheKey] = song
	c.cacheMu.Unlock()

	return song, nil
}

// GetSong retrieves a song by its GetSongBPM ID.
func (c *Client) GetSong(ctx context.Context, id string) (*Song, error) {
	if id == "" {
		return nil, errors.New("song id is required")
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("id", id)

	body, err := c.get(ctx, "/song/", params)
	if err != nil {
		return nil, err
	}

	var response songResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if response.Song.ID == "" {
		return nil, errors.Newf("song not found: %s", id)
	}

	return convertSong(response.Song), nil
}

// Tempo returns the tempo for a song, or false when it is unknown.
func (c *Client) Tempo(ctx context.Context, songName, artistName string) (float64, bool, error) {
	song, err := c.Search(ctx, songName, artistName)
	if err != nil {
		return 0, false, err
	}
	if song == nil || song.Tempo <= 0 {
		return 0, false, nil
	}
	return song.Tempo, true, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, errors.Errorf("getsongbpm API error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, errors.Errorf("getsongbpm API error %d", resp.StatusCode)
	}

	return body, nil
}

func convertSong(r songRecord) *Song {
	tempo, err := strconv.ParseFloat(strings.TrimSpace(r.Tempo), 64)
	if err != nil {
		tempo = 0
	}
	return &Song{
		ID:     r.ID,
		Title:  r.Title,
		Artist: r.Artist.Name,
		Tempo:  tempo,
		Key:    r.KeyOf,
	}
}

// String returns "Title - Artist (N bpm)".
func (s *Song) String() string {
	return fmt.Sprintf("%s - %s (%.0f bpm)", s.Title, s.Artist, s.Tempo)
}
