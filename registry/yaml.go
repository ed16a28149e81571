package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of an event catalog:
//
//	events:
//	  - event_type: visuals_sketch
//	    description: Visual sketch creation
//	    category: ai_visual
//	    base_cost: 12
type catalogFile struct {
	Events []Definition `yaml:"events"`
}

// Parse decodes a YAML catalog and builds a registry from it.
func Parse(data []byte) (*Registry, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: decode catalog: %w", err)
	}
	return New(f.Events...)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read catalog: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the registry as a YAML catalog.
func (r *Registry) Marshal() ([]byte, error) {
	return yaml.Marshal(catalogFile{Events: r.All()})
}
