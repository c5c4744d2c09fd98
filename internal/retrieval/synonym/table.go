package synonym

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_synonyms.yaml
var defaultTable []byte

// Table is the on-disk shape of a synonym file.
type Table struct {
	Groups []Group `yaml:"groups"`
}

// ParseTable decodes a YAML synonym table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing synonym table: %w", err)
	}
	for i, g := range t.Groups {
		if g.Canonical == "" {
			return nil, fmt.Errorf("synonym group %d: canonical term is required", i)
		}
	}
	return &t, nil
}

// LoadTable reads a YAML synonym table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonym table %s: %w", path, err)
	}
	return ParseTable(data)
}

// DefaultTable returns the built-in legal synonym table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded synonym table is invalid: %v", err))
	}
	return t
}

// Load returns an Expander over the table at path, or over the built-in
// table when path is empty.
func Load(path string) (*Expander, error) {
	if path == "" {
		return NewExpander(DefaultTable().Groups), nil
	}
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	return NewExpander(t.Groups), nil
}
