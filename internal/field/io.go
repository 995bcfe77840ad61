package field

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Map files are YAML documents (JSON is accepted as a subset) with the
// snake_case keys of the input types.

func LoadCylMapInput(path string) (CylMapInput, error) {
	var inp CylMapInput
	err := loadInput(path, &inp)
	return inp, err
}

func LoadCartMapInput(path string) (CartMapInput, error) {
	var inp CartMapInput
	err := loadInput(path, &inp)
	return inp, err
}

func LoadRZMapInput(path string) (RZMapInput, error) {
	var inp RZMapInput
	err := loadInput(path, &inp)
	return inp, err
}

// SaveInput writes any map input as YAML.
func SaveInput(path string, inp any) error {
	data, err := yaml.Marshal(inp)
	if err != nil {
		return fmt.Errorf("failed to marshal field map: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write field map: %w", err)
	}
	return nil
}

func loadInput[T any](path string, inp *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read field map: %w", err)
	}
	if err := yaml.Unmarshal(data, inp); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMap, path, err)
	}
	return nil
}
