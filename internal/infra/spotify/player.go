package spotify

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
)

// Player drives playback on one Spotify Connect device.
type Player struct {
	client   *Client
	deviceID spotify.ID
}

// NewPlayer returns a Player bound to deviceID. An empty deviceID targets
// whichever device is currently active.
func NewPlayer(client *Client, deviceID string) *Player {
	return &Player{client: client, deviceID: spotify.ID(deviceID)}
}

// DeviceID returns the target device.
func (p *Player) DeviceID() string {
	return string(p.deviceID)
}

// Activate transfers playback to the target device without starting it.
func (p *Player) Activate(ctx context.Context) error {
	if p.deviceID == "" {
		return nil
	}
	err := p.client.retry(ctx, func() error {
		return p.client.client.TransferPlayback(ctx, p.deviceID, false)
	})
	if err != nil {
		return errors.Wrap(err, "failed to transfer playback")
	}
	zlog.Info().Str("device_id", string(p.deviceID)).Msg("spotify device activated")
	return nil
}

// Play starts uri at positionMs.
func (p *Player) Play(ctx context.Context, uri string, positionMs int) error {
	opt := p.options()
	opt.URIs = []spotify.URI{spotify.URI(uri)}

	err := p.client.retry(ctx, func() error {
		return p.client.client.PlayOpt(ctx, opt)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to play %s", uri)
	}

	if positionMs > 0 {
		return p.Seek(ctx, positionMs)
	}
	return nil
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	err := p.client.retry(ctx, func() error {
		return p.client.client.PauseOpt(ctx, p.options())
	})
	return errors.Wrap(err, "failed to pause")
}

// Resume continues the current track.
func (p *Player) Resume(ctx context.Context) error {
	err := p.client.retry(ctx, func() error {
		return p.client.client.PlayOpt(ctx, p.options())
	})
	return errors.Wrap(err, "failed to resume")
}

// Seek moves the current track to positionMs.
func (p *Player) Seek(ctx context.Context, positionMs int) error {
	err := p.client.retry(ctx, func() error {
		return p.client.client.SeekOpt(ctx, max(positionMs, 0), p.options())
	})
	return errors.Wrapf(err, "failed to seek to %dms", positionMs)
}

// SetVolume sets the device volume from a 0..1 fraction.
func (p *Player) SetVolume(ctx context.Context, fraction float64) error {
	percent := volumePercent(fraction)
	err := p.client.retry(ctx, func() error {
		return p.client.client.VolumeOpt(ctx, percent, p.options())
	})
	return errors.Wrapf(err, "failed to set volume to %d%%", percent)
}

func (p *Player) options() *spotify.PlayOptions {
	if p.deviceID == "" {
		return &spotify.PlayOptions{}
	}
	id := p.deviceID
	return &spotify.PlayOptions{DeviceID: &id}
}

// volumePercent converts a fraction to the 0..100 percent the API expects.
func volumePercent(fraction float64) int {
	return int(math.Round(math.Max(0, math.Min(1, fraction)) * 100))
}
