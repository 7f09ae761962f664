package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VolumeTypes maps a scan-strategy id to the field names a complete volume of
// that scan is expected to contain. It drives the field-set completeness
// policy of the processing daemon.
type VolumeTypes map[string][]string

// LoadVolumeTypes reads the YAML volume-type table. Example:
//
//	"0315": [DBZH, DBZV, ZDR, RHOHV]
//	"0200": [VRAD, WRAD]
func LoadVolumeTypes(path string) (VolumeTypes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read volume types: %w", err)
	}
	var table VolumeTypes
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse volume types: %w", err)
	}
	for scan, fields := range table {
		if len(fields) == 0 {
			return nil, &ValidationError{Field: "volume_types", Reason: fmt.Sprintf("scan %q lists no fields", scan)}
		}
	}
	return table, nil
}
