// internal/registers/load.go
package registers

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed sdm630.yaml
var sdm630 []byte

// Default returns the built-in Eastron SDM630 map.
func Default() (Map, error) {
	return Parse(sdm630)
}

// Load reads a register map file. JSON files are accepted as YAML.
// An empty path selects the built-in map.
func Load(path string) (Map, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("register map: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("register map %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and checks a register map document.
func Parse(data []byte) (Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

// Check rejects descriptors that can never decode.
// It does not compare the map against the polled block size.
func (m Map) Check() error {
	if len(m) == 0 {
		return errors.New("register map is empty")
	}

	seen := make(map[string]struct{}, len(m))
	for i, d := range m {
		if d.ID == "" {
			return fmt.Errorf("entry %d: id required", i)
		}
		if d.ID == PowerTotalID {
			return fmt.Errorf("entry %d: id %q is reserved", i, d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("entry %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.Register < 0 {
			return fmt.Errorf("entry %q: register must be >= 0", d.ID)
		}
		if d.Bytes <= 0 {
			return fmt.Errorf("entry %q: bytes must be > 0", d.ID)
		}
		if d.ToFixed < 0 {
			return fmt.Errorf("entry %q: toFixed must be >= 0", d.ID)
		}
	}
	return nil
}
