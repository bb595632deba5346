// Package claude generates workout plans with the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/spinbox/internal/domain/plan"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

const systemPrompt = `You are an expert cycle/spin class instructor helping to create lesson plans.

When given a theme and duration, create a structured workout plan with varied segments including:
- Warm-up (always first, 3-5 minutes, LOW intensity)
- Seated flats (moderate effort, recovery)
- Standing climbs (high resistance, slow cadence)
- Seated climbs (moderate-high resistance)
- Sprints/jumps (high cadence, lower resistance)
- Tabata intervals (20 sec on / 10 sec off)
- Cool-down (always last, 3-5 minutes, LOW intensity)

Intensity starts LOW, builds to MEDIUM, peaks at HIGH with MEDIUM or LOW recoveries, and ends LOW.

Songs must match the segment's intensity before the theme:
- low: calm songs under 100 BPM
- medium: 100-130 BPM
- high: driving songs over 130 BPM
The theme picks the era and genre, never a calm song for a high intensity segment.

For each segment give a name, duration in seconds, intensity (low, medium, high),
position (seated or standing), coaching cues as the description, a suggested BPM
range and a song suggestion formatted "Song Name - Artist".

Respond ONLY with JSON of this shape:
{
  "theme": "string",
  "total_duration_minutes": number,
  "segments": [
    {
      "name": "string",
      "duration_seconds": number,
      "intensity": "low|medium|high",
      "position": "seated|standing",
      "description": "string",
      "suggested_bpm_range": "string",
      "song": "string"
    }
  ],
  "notes": "string or null"
}`

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Config represents Anthropic client configuration.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

// Client generates plans.
type Client struct {
	messages  *anthropic.MessageService
	model     string
	maxTokens int
}

// New creates a new Client.
func New(cfg Config, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Client{
		messages:  &client.Messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// GeneratePlan asks the model for a plan of about minutes length on theme.
// The result is decoded but not validated.
func (c *Client) GeneratePlan(ctx context.Context, theme string, minutes int) (*plan.Plan, error) {
	prompt := fmt.Sprintf(`Create a %d-minute cycle class lesson plan with the theme: %q

Remember to:
- Start with a warm-up
- Build intensity gradually
- Include variety (seated, standing, climbs, sprints)
- End with a cool-down
- Make the theme influence the coaching cues and energy

Respond with ONLY the JSON, no additional text.`, minutes, theme)

	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate plan")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	zlog.Debug().
		Str("model", c.model).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("plan generated")

	return decodePlan(text.String())
}

// decodePlan decodes a plan from a model reply, which may wrap the JSON in a
// markdown code fence.
func decodePlan(reply string) (*plan.Plan, error) {
	doc := strings.TrimSpace(reply)
	if !strings.HasPrefix(doc, "{") {
		m := fencedJSON.FindStringSubmatch(doc)
		if m == nil {
			return nil, errors.Newf("reply is not a JSON plan: %.200s", doc)
		}
		doc = m[1]
	}

	var p plan.Plan
	// JSON documents are valid YAML
	if err := yaml.Unmarshal([]byte(doc), &p); err != nil {
		return nil, errors.Wrap(err, "failed to decode generated plan")
	}
	return &p, nil
}
