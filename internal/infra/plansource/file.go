// Package plansource loads workout plans from files and the plans API.
package plansource

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/osa030/spinbox/internal/domain/plan"
)

// LoadFile reads a YAML or JSON plan file and validates it.
func LoadFile(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plan file %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON plan document.
func Parse(data []byte) (*plan.Plan, error) {
	var p plan.Plan
	// JSON documents are valid YAML
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "failed to parse plan")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// WriteFile writes the plan as YAML.
func WriteFile(path string, p *plan.Plan) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "failed to encode plan")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write plan file %s", path)
	}
	return nil
}
