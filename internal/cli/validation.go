package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/example/apm/internal/core/sixw"
)

// parseHours parses a non-negative effort estimate.
func parseHours(s string) (float64, error) {
	h, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hours %q: expected a number", s)
	}
	if h < 0 {
		return 0, fmt.Errorf("invalid hours %q: must not be negative", s)
	}
	return h, nil
}

// decodeSixW reads a 6W document written as YAML or JSON. Keys are the
// snake_case field names, the same ones the JSON output uses.
func decodeSixW(data []byte) (sixw.Context, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return sixw.Context{}, fmt.Errorf("failed to parse 6W document: %w", err)
	}

	known := make(map[string]bool, len(sixw.AllFields))
	for _, f := range sixw.AllFields {
		known[string(f)] = true
	}
	for k := range doc {
		if !known[k] {
			return sixw.Context{}, fmt.Errorf("unknown 6W field %q", k)
		}
	}

	// Round-trip through JSON so the field tags on sixw.Context apply.
	raw, err := json.Marshal(doc)
	if err != nil {
		return sixw.Context{}, fmt.Errorf("failed to convert 6W document: %w", err)
	}
	var c sixw.Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return sixw.Context{}, fmt.Errorf("invalid 6W document: %w", err)
	}
	c.Normalize()
	return c, nil
}
