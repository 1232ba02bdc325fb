package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds the operator-tunable generation texts. Empty fields fall
// back to the built-in defaults in the gemini package.
type Prompts struct {
	SystemInstruction string `yaml:"systemInstruction"`
	ImageStyle        string `yaml:"imageStyle"`
}

// LoadPrompts reads a prompts.yaml file. A missing path returns empty
// prompts, not an error, so the file stays optional.
func LoadPrompts(path string) (Prompts, error) {
	var p Prompts
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("cannot read prompts file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("cannot parse prompts file %s: %w", path, err)
	}
	return p, nil
}
