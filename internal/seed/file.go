package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"askpurposely/internal/scenario"
)

// LoadFile reads a YAML list of scenarios, used to preload the pool at
// startup. Each entry carries at least question and perspective; extra keys
// ride along untouched.
func LoadFile(path string) ([]scenario.Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		var wrapper struct {
			Scenarios []map[string]any `yaml:"scenarios"`
		}
		if werr := yaml.Unmarshal(data, &wrapper); werr != nil || wrapper.Scenarios == nil {
			return nil, fmt.Errorf("seed: parse %s: %w", path, err)
		}
		items = wrapper.Scenarios
	}
	raws := make([]scenario.Raw, 0, len(items))
	for _, item := range items {
		raws = append(raws, scenario.Raw(item))
	}
	return raws, nil
}
