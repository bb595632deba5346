package planning

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// Generator drafts a plan for a theme and class length.
type Generator interface {
	GeneratePlan(ctx context.Context, theme string, minutes int) (*plan.Plan, error)
}

// GenerateRequest describes the class to generate.
type GenerateRequest struct {
	Theme           string `validate:"required"`
	DurationMinutes int    `default:"50" validate:"gte=15,lte=120"`
}

// Generate drafts a plan, recomputes its length from the segments and validates it.
// With a searcher, suggested songs are linked to Spotify tracks.
func Generate(ctx context.Context, g Generator, s TrackSearcher, req GenerateRequest) (*plan.Plan, error) {
	if err := defaults.Set(&req); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(req); err != nil {
		return nil, errors.Wrap(err, "invalid generate request")
	}

	p, err := g.GeneratePlan(ctx, req.Theme, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if p.Theme == "" {
		p.Theme = req.Theme
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "generated plan is invalid")
	}
	p.TotalDurationMinutes = (p.TotalSeconds() + 59) / 60

	linked := 0
	if s != nil {
		linked = ResolveSongs(ctx, s, p)
	}
	zlog.Info().
		Str("theme", p.Theme).
		Int("segments", len(p.Segments)).
		Int("minutes", p.TotalDurationMinutes).
		Int("linked", linked).
		Msg("plan generated")

	return p, nil
}
