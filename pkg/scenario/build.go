package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

// BuildConfig is a YAML build configuration: a list of component JSON
// fragments merged in order, plus overrides applied on top.
type BuildConfig struct {
	Metadata   map[string]any `yaml:"metadata"`
	Components []string       `yaml:"components"`
	Overrides  map[string]any `yaml:"overrides"`
	Output     string         `yaml:"output"`
}

// BuildFromConfig composes a scenario from a YAML build config. Component
// fragments are looked up under componentsDir and merged in declaration
// order, later fragments winning; nested maps merge key-wise. Overrides that
// carry only a value (either {value: X} or a bare scalar) update the
// parameter's value in place; full mappings replace or create the parameter.
func BuildFromConfig(configPath, componentsDir string) (*Scenario, string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, "", contract.NewErrorWith(contract.CodeInvalidInput,
			fmt.Sprintf("failed to read build config %q", configPath), err)
	}

	var cfg BuildConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, "", contract.NewErrorWith(contract.CodeInvalidInput,
			fmt.Sprintf("failed to parse build config %q", configPath), err)
	}

	parameters := map[string]any{}

	for _, component := range cfg.Components {
		componentPath := filepath.Join(componentsDir, component)

		fragment, err := os.ReadFile(componentPath)
		if err != nil {
			return nil, "", contract.NewErrorWith(contract.CodeInvalidInput,
				fmt.Sprintf("component file not found: %q", componentPath), err)
		}

		var params map[string]any
		if err := json.Unmarshal(fragment, &params); err != nil {
			return nil, "", contract.NewErrorWith(contract.CodeInvalidInput,
				fmt.Sprintf("failed to parse component %q", componentPath), err)
		}

		parameters = mergeParameters(parameters, params)
	}

	applyOverrides(parameters, cfg.Overrides)

	metadata := cfg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if _, ok := metadata["date_created"]; !ok {
		metadata["date_created"] = time.Now().Format("2006-01-02 15:04")
	}

	sc, err := fromRaw(metadata, parameters)
	if err != nil {
		return nil, "", err
	}

	output := cfg.Output
	if output == "" {
		output = "output.json"
	}

	return sc, output, nil
}

// BuildAll builds every *.yml config in configsDir, returning the configs in
// sorted order so output is deterministic.
func BuildAll(configsDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", configsDir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// mergeParameters deep-merges one level of nesting: map values merge
// key-wise, anything else is overwritten by the newer fragment.
func mergeParameters(base, next map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(next))
	for k, v := range base {
		result[k] = v
	}

	for key, value := range next {
		existing, ok := result[key].(map[string]any)
		incoming, isMap := value.(map[string]any)
		if ok && isMap {
			merged := make(map[string]any, len(existing)+len(incoming))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range incoming {
				merged[k] = v
			}
			result[key] = merged
		} else {
			result[key] = value
		}
	}

	return result
}

func applyOverrides(parameters map[string]any, overrides map[string]any) {
	for name, override := range overrides {
		param, exists := parameters[name].(map[string]any)
		if !exists {
			parameters[name] = override
			continue
		}

		if m, ok := override.(map[string]any); ok {
			if v, has := m["value"]; has {
				param["value"] = v
				continue
			}
			parameters[name] = override
			continue
		}

		// Bare scalar override: keep the structure, update the value.
		param["value"] = override
	}
}

func fromRaw(metadata, parameters map[string]any) (*Scenario, error) {
	raw := map[string]any{"metadata": metadata, "parameters": parameters}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode built scenario: %w", err)
	}

	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode built scenario: %w", err)
	}

	return &sc, nil
}
