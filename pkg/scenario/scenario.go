// Package scenario implements scenario documents: building them from
// component fragments, deriving per-country variants and applying them to a
// model via JSONPath substitution.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

// CountryParameter is the parameter rebound when deriving a per-country
// scenario from a shared template.
const CountryParameter = "Country"

// Parameter is a single scenario parameter: the JSONPath expressions it
// targets and the value written to every match.
type Parameter struct {
	Paths []string `json:"paths,omitempty"`
	Value any      `json:"value,omitempty"`

	hasValue     bool
	pathsInvalid bool
}

// UnmarshalJSON tolerates malformed parameters instead of failing the whole
// scenario: a non-list "paths" is remembered and surfaced as a warning at
// apply time.
func (p *Parameter) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if v, ok := raw["value"]; ok {
		p.hasValue = true
		if err := json.Unmarshal(v, &p.Value); err != nil {
			return err
		}
	}

	if v, ok := raw["paths"]; ok {
		if err := json.Unmarshal(v, &p.Paths); err != nil {
			p.Paths = nil
			p.pathsInvalid = true
		}
	}

	return nil
}

// NewParameter builds a well-formed parameter. Mostly useful in tests and
// the builder.
func NewParameter(paths []string, value any) Parameter {
	return Parameter{Paths: paths, Value: value, hasValue: true}
}

type Scenario struct {
	Metadata   map[string]any       `json:"metadata,omitempty"`
	Parameters map[string]Parameter `json:"parameters"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contract.NewErrorWith(contract.CodeInvalidInput,
			fmt.Sprintf("failed to read scenario %q", path), err)
	}

	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, contract.NewErrorWith(contract.CodeInvalidInput,
			fmt.Sprintf("failed to parse scenario %q", path), err)
	}

	return &sc, nil
}

func (s *Scenario) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", path, err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario %q: %w", path, err)
	}

	return nil
}

// ForCountry clones the scenario and rebinds only the Country parameter's
// value. Every other parameter is identical to the template's.
func (s *Scenario) ForCountry(iso3 string) (*Scenario, error) {
	param, ok := s.Parameters[CountryParameter]
	if !ok {
		return nil, contract.NewError(contract.CodeInvalidInput,
			"scenario missing Country parameter")
	}

	clone := &Scenario{
		Metadata:   make(map[string]any, len(s.Metadata)),
		Parameters: make(map[string]Parameter, len(s.Parameters)),
	}
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	for k, v := range s.Parameters {
		clone.Parameters[k] = v
	}

	param.Value = iso3
	param.hasValue = true
	clone.Parameters[CountryParameter] = param

	return clone, nil
}

// LoadModel reads a model document as generic JSON.
func LoadModel(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contract.NewErrorWith(contract.CodeInvalidInput,
			fmt.Sprintf("failed to read model %q", path), err)
	}

	var model map[string]any
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, contract.NewErrorWith(contract.CodeInvalidInput,
			fmt.Sprintf("failed to parse model %q", path), err)
	}

	return model, nil
}

// SaveModel writes a model document with two-space indentation, creating
// parent directories as needed.
func SaveModel(model map[string]any, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", path, err)
		}
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model %q: %w", path, err)
	}

	return nil
}

// Stem returns the file name without directory or extension; scenario names
// are path stems throughout the pipeline.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
