package plansource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// ErrNotFound is returned when the plans API has no plan with the given ID.
var ErrNotFound = errors.New("plan not found")

// Client is a read-only client for the plans API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Config represents plans API client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Summary describes a saved plan without its segments.
type Summary struct {
	ID              string `mapstructure:"id"`
	Theme           string `mapstructure:"theme"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
	CreatedAt       string `mapstructure:"created_at"`
}

// New creates a new plans API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("plans API base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// GetPlan fetches a saved plan by ID.
func (c *Client) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	if id == "" {
		return nil, errors.New("plan id is required")
	}

	var row map[string]any
	if err := c.get(ctx, "/api/plans/"+url.PathEscape(id), &row); err != nil {
		return nil, err
	}

	raw, ok := row["plan_json"]
	if !ok || raw == nil {
		return nil, errors.Newf("plan %s has no plan_json", id)
	}
	// Some stores return the column as an encoded string
	if s, ok := raw.(string); ok {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, errors.Wrap(err, "failed to parse plan_json")
		}
		raw = decoded
	}

	p, err := decodePlan(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "plan %s", id)
	}
	zlog.Debug().Str("plan_id", id).Int("segments", len(p.Segments)).Msg("fetched plan")
	return p, nil
}

// ListPlans lists saved plans, newest first.
func (c *Client) ListPlans(ctx context.Context) ([]Summary, error) {
	var body struct {
		Plans []map[string]any `json:"plans"`
	}
	if err := c.get(ctx, "/api/plans", &body); err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(body.Plans))
	for _, row := range body.Plans {
		var s Summary
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &s,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create decoder")
		}
		if err := decoder.Decode(row); err != nil {
			return nil, errors.Wrap(err, "failed to decode plan summary")
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
			return errors.Errorf("plans API error %d: %s", resp.StatusCode, detail.Detail)
		}
		return errors.Errorf("plans API error %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// decodePlan maps a generic JSON object onto plan.Plan using its json tags.
func decodePlan(raw any) (*plan.Plan, error) {
	var p plan.Plan
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode plan")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
