package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// defaultRegions is the compiled-in region table used when no regions file is
// configured. Coordinates are approximate datacenter locations.
var defaultRegions = []model.GeoRegion{
	{ID: "us-east-1", Provider: "aws", Name: "N. Virginia", Latitude: 38.13, Longitude: -78.45},
	{ID: "us-west-2", Provider: "aws", Name: "Oregon", Latitude: 45.87, Longitude: -119.69},
	{ID: "eu-west-1", Provider: "aws", Name: "Ireland", Latitude: 53.41, Longitude: -8.24},
	{ID: "ap-southeast-1", Provider: "aws", Name: "Singapore", Latitude: 1.37, Longitude: 103.8},
	{ID: "us-central1", Provider: "gcp", Name: "Iowa", Latitude: 41.26, Longitude: -95.86},
	{ID: "europe-west4", Provider: "gcp", Name: "Netherlands", Latitude: 53.44, Longitude: 6.84},
	{ID: "asia-northeast1", Provider: "gcp", Name: "Tokyo", Latitude: 35.69, Longitude: 139.69},
	{ID: "eastus", Provider: "azure", Name: "Virginia", Latitude: 37.37, Longitude: -79.82},
	{ID: "westeurope", Provider: "azure", Name: "Netherlands", Latitude: 52.37, Longitude: 4.9},
	{ID: "southeastasia", Provider: "azure", Name: "Singapore", Latitude: 1.28, Longitude: 103.85},
}

// regionsFile is the YAML shape of an external region table.
type regionsFile struct {
	Regions []model.GeoRegion `yaml:"regions"`
}

// LoadRegions returns the geo-region reference table. When path is empty the
// compiled-in defaults are returned; otherwise the YAML file at path fully
// replaces them.
func LoadRegions(path string) ([]model.GeoRegion, error) {
	if path == "" {
		out := make([]model.GeoRegion, len(defaultRegions))
		copy(out, defaultRegions)
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading regions file: %w", err)
	}

	var f regionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parsing regions file %s: %w", path, err)
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("config: regions file %s contains no regions", path)
	}

	seen := make(map[string]struct{}, len(f.Regions))
	for _, r := range f.Regions {
		if r.ID == "" {
			return nil, fmt.Errorf("config: regions file %s contains a region without an id", path)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("config: duplicate region id %q in %s", r.ID, path)
		}
		seen[r.ID] = struct{}{}
	}

	return f.Regions, nil
}
