// Package planning builds workout plans from Spotify playlists.
package planning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/plan"
	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/track"
)

const (
	// MinTracks is the smallest playlist that makes a warm-up, a main block and a cool-down.
	MinTracks = 3
	// MaxSegmentSeconds caps a single track's segment.
	MaxSegmentSeconds = 3600

	defaultEnergy = 0.5
	defaultTempo  = 100.0
)

var (
	ErrEmptyPlaylist = errors.New("playlist is empty or contains no playable tracks")
	ErrTooFewTracks  = errors.Newf("playlist must contain at least %d tracks for a valid workout plan", MinTracks)
)

// PlaylistSource loads playlists with their tracks.
type PlaylistSource interface {
	GetPlaylist(ctx context.Context, playlistURL string) (*playlist.Playlist, error)
}

// FeatureSource provides audio features keyed by track ID.
type FeatureSource interface {
	GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]track.AudioFeatures, error)
}

// TempoSource looks up a tempo by song and artist.
type TempoSource interface {
	Tempo(ctx context.Context, songName, artistName string) (float64, bool, error)
}

// Planner converts playlists into plans.
type Planner struct {
	playlists PlaylistSource
	features  FeatureSource
	tempos    TempoSource
}

// NewPlanner creates a Planner. features and tempos may be nil.
func NewPlanner(playlists PlaylistSource, features FeatureSource, tempos TempoSource) *Planner {
	return &Planner{
		playlists: playlists,
		features:  features,
		tempos:    tempos,
	}
}

// FromPlaylist loads a playlist and builds a plan with one segment per track.
func (p *Planner) FromPlaylist(ctx context.Context, playlistURL string) (*plan.Plan, error) {
	if p.playlists == nil {
		return nil, errors.New("no playlist source configured")
	}

	pl, err := p.playlists.GetPlaylist(ctx, playlistURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load playlist")
	}
	if len(pl.Tracks) == 0 {
		return nil, ErrEmptyPlaylist
	}
	if len(pl.Tracks) < MinTracks {
		return nil, ErrTooFewTracks
	}

	features := p.lookupFeatures(ctx, pl)
	zlog.Info().
		Str("playlist", pl.Name).
		Int("tracks", len(pl.Tracks)).
		Int("features", len(features)).
		Dur("runtime", pl.Runtime()).
		Msg("building plan from playlist")

	built, err := Build(pl, features)
	if err != nil {
		return nil, err
	}
	if cut := pl.Runtime() - time.Duration(built.TotalSeconds())*time.Second; cut >= time.Minute {
		zlog.Warn().Dur("cut", cut).Msgf("tracks longer than %d seconds were shortened", MaxSegmentSeconds)
	}
	return built, nil
}

// lookupFeatures never fails; tracks without features get defaults.
func (p *Planner) lookupFeatures(ctx context.Context, pl *playlist.Playlist) map[string]track.AudioFeatures {
	features := make(map[string]track.AudioFeatures)
	if p.features != nil {
		found, err := p.features.GetAudioFeatures(ctx, pl.TrackIDs())
		if err != nil {
			zlog.Warn().Err(err).Msg("audio features unavailable, using defaults")
		} else {
			features = found
		}
	}

	if p.tempos == nil {
		return features
	}

	for _, t := range pl.Tracks {
		f, ok := features[t.ID]
		if ok && f.HasTempo() {
			continue
		}
		artist := ""
		if len(t.Artists) > 0 {
			artist = t.Artists[0]
		}
		tempo, found, err := p.tempos.Tempo(ctx, t.Name, artist)
		if err != nil {
			zlog.Debug().Err(err).Str("track", t.Song()).Msg("tempo lookup failed")
			continue
		}
		if !found {
			continue
		}
		if !ok {
			f = track.AudioFeatures{TrackID: t.ID, Energy: defaultEnergy}
		}
		f.Tempo = tempo
		f.Source = "getsongbpm"
		features[t.ID] = f
	}
	return features
}

// Build converts a playlist into a plan using the given features.
func Build(pl *playlist.Playlist, features map[string]track.AudioFeatures) (*plan.Plan, error) {
	n := len(pl.Tracks)
	if n == 0 {
		return nil, ErrEmptyPlaylist
	}
	if n < MinTracks {
		return nil, ErrTooFewTracks
	}

	segments := make([]plan.Segment, 0, n)
	totalSeconds := 0
	for i, t := range pl.Tracks {
		energy, tempo := defaultEnergy, defaultTempo
		if f, ok := features[t.ID]; ok {
			energy = f.Energy
			if f.HasTempo() {
				tempo = f.Tempo
			}
		}

		intensity := energyToIntensity(energy)
		if i == 0 || i == n-1 {
			intensity = plan.IntensityLow
		}

		kind := segmentType(i, n, intensity)
		duration := min(t.DurationSeconds(), MaxSegmentSeconds)
		totalSeconds += duration

		segments = append(segments, plan.Segment{
			Name:              kind.name,
			DurationSeconds:   duration,
			Intensity:         intensity,
			Position:          kind.position,
			Description:       kind.description,
			SuggestedBPMRange: tempoToBPMRange(tempo),
			Song:              t.Song(),
			SpotifyURI:        t.URI,
		})
	}

	return &plan.Plan{
		Theme:                pl.Theme(),
		TotalDurationMinutes: (totalSeconds + 59) / 60,
		Segments:             segments,
		Notes:                "Created from Spotify playlist: " + pl.Theme(),
	}, nil
}

func energyToIntensity(energy float64) plan.Intensity {
	switch {
	case energy < 0.4:
		return plan.IntensityLow
	case energy < 0.7:
		return plan.IntensityMedium
	default:
		return plan.IntensityHigh
	}
}

// tempoToBPMRange rounds to the nearest 5 (half to even) and spans ±5.
func tempoToBPMRange(tempo float64) string {
	base := int(math.RoundToEven(tempo/5)) * 5
	return fmt.Sprintf("%d-%d", base-5, base+5)
}
