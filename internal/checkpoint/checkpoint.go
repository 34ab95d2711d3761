// Package checkpoint persists learned-parameter snapshots as JSON
// name→value maps.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
)

// Save writes a parameter snapshot to a JSON file.
func Save(path string, snapshot map[string][]float64) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint file: %w", err)
	}
	return nil
}

// Load reads a parameter snapshot from a JSON file.
func Load(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint file: %w", err)
	}
	var snapshot map[string][]float64
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing checkpoint file: %w", err)
	}
	return snapshot, nil
}
