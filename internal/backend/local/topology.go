package local

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topology describes the simulated device set.
//
// Example YAML:
//
//	devices:
//	  - id: 0
//	    name: dev0
//	  - id: 1
//	    name: dev1
type Topology struct {
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one device.
type DeviceConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// Validate checks the topology for duplicate or negative device ids.
func (t *Topology) Validate() error {
	if len(t.Devices) == 0 {
		return fmt.Errorf("topology: no devices configured")
	}
	seen := make(map[int]bool, len(t.Devices))
	for _, d := range t.Devices {
		if d.ID < 0 {
			return fmt.Errorf("topology: negative device id %d", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("topology: duplicate device id %d", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// LoadTopology reads a YAML topology file.
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	var t Topology
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return &t, nil
}
