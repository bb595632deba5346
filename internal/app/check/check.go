// Package check provides plan pre-flight checks.
package check

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// Finding is a problem reported by a check. Findings never stop playback.
type Finding struct {
	Check           string
	Code            string // e.g., "duration_mismatch", "segment_too_long"
	SegmentIndex    int
	SubSegmentIndex int // -1 when the finding concerns the whole segment
	Message         string
}

func (f Finding) String() string {
	if f.SubSegmentIndex >= 0 {
		return fmt.Sprintf("[%s] segment %d/%d: %s", f.Code, f.SegmentIndex, f.SubSegmentIndex, f.Message)
	}
	return fmt.Sprintf("[%s] segment %d: %s", f.Code, f.SegmentIndex, f.Message)
}

// Check is the interface for plan checks.
type Check interface {
	// Name returns the check name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Codes returns the finding codes this check can report.
	Codes() []string
	// ValidateConfig validates and applies the check configuration.
	ValidateConfig(settings map[string]any) error
	// Run inspects the plan.
	Run(p *plan.Plan) []Finding
}

// registry holds registered check factories.
var registry = make(map[string]func() Check)

// Register registers a check factory.
func Register(name string, factory func() Check) {
	registry[name] = factory
}

// GetRegistered returns all registered check factories.
func GetRegistered() map[string]func() Check {
	return registry
}

// Names returns the registered check names in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a registered check by name.
func New(name string) (Check, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Newf("unknown check: %s", name)
	}
	return factory(), nil
}

// BuildChain creates a chain from per-check settings, keyed by check name.
// Checks are added in name order.
func BuildChain(settings map[string]map[string]any) (*Chain, error) {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	chain := NewChain()
	for _, name := range names {
		c, err := New(name)
		if err != nil {
			return nil, err
		}
		if err := c.ValidateConfig(settings[name]); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for check %s", name)
		}
		chain.Add(c)
	}
	return chain, nil
}

// decodeSettings decodes settings into out, applies defaults and validates it.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
