// Package region resolves Steam location codes to the region labels shown in
// lobby replies.
package region

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Unknown is returned when a location cannot be resolved
const Unknown = "N/A"

// StateCountry is the one country whose region depends on the state code
const StateCountry = "US"

// place is a leaf of the region document
type place struct {
	Region string `yaml:"region"`
}

// Table maps country (and, for StateCountry, state) codes to region labels.
// It is read-only after loading.
type Table struct {
	countries map[string]string
	states    map[string]string
}

// Load reads the region document at path. A missing file yields an empty
// table, so every lookup resolves to Unknown.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to read region document: %w", err)
	}
	return Parse(data)
}

// Empty returns a table with no entries
func Empty() *Table {
	return &Table{
		countries: make(map[string]string),
		states:    make(map[string]string),
	}
}

// Parse decodes a region document. JSON documents are accepted as well,
// since YAML is a superset of JSON.
//
//	DE: {region: EU}
//	US:
//	  CA: {region: US West}
func Parse(data []byte) (*Table, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse region document: %w", err)
	}

	t := Empty()
	for code, node := range doc {
		code = strings.ToUpper(code)
		if code == StateCountry {
			var states map[string]yaml.Node
			if err := node.Decode(&states); err != nil {
				return nil, fmt.Errorf("failed to parse %s states: %w", StateCountry, err)
			}
			for state, stateNode := range states {
				var p place
				// Skip scalar metadata next to the state entries
				if stateNode.Kind != yaml.MappingNode || stateNode.Decode(&p) != nil || p.Region == "" {
					continue
				}
				t.states[strings.ToUpper(state)] = p.Region
			}
			continue
		}

		var p place
		if node.Kind != yaml.MappingNode || node.Decode(&p) != nil || p.Region == "" {
			continue
		}
		t.countries[code] = p.Region
	}
	return t, nil
}

// RegionFor returns the region label for a location, or Unknown if any
// required key is missing.
func (t *Table) RegionFor(country, state string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return Unknown
	}

	var (
		label string
		ok    bool
	)
	if country == StateCountry {
		label, ok = t.states[strings.ToUpper(strings.TrimSpace(state))]
	} else {
		label, ok = t.countries[country]
	}
	if !ok {
		return Unknown
	}
	return label
}

// Len returns the number of resolvable entries
func (t *Table) Len() int {
	return len(t.countries) + len(t.states)
}
