// Package version reports the software versions a device announces to the
// backend when it activates.
package version

import (
	"encoding/json"
	"os"
	"strings"
)

// Core is the murdev build version (set by ldflags during build).
var Core = "0.3.0"

// Info is the version pair sent with device activation.
type Info struct {
	CoreVersion      string `json:"coreVersion"`
	EnclosureVersion string `json:"enclosureVersion,omitempty"`
}

// Manager resolves version Info from the build and an optional version file
// written by the enclosure firmware installer.
type Manager struct {
	// Path of a JSON file {"coreVersion": ..., "enclosureVersion": ...}.
	// Empty or missing means no enclosure.
	Path string

	// Enclosure overrides whatever the version file says.
	Enclosure string
}

// Get returns the current versions. It never fails: an unreadable or
// malformed version file falls back to the build version alone.
func (m Manager) Get() Info {
	info := Info{CoreVersion: Core}

	if m.Path != "" {
		if b, err := os.ReadFile(m.Path); err == nil {
			var file Info
			if json.Unmarshal(b, &file) == nil {
				if v := strings.TrimSpace(file.CoreVersion); v != "" {
					info.CoreVersion = v
				}
				info.EnclosureVersion = strings.TrimSpace(file.EnclosureVersion)
			}
		}
	}

	if m.Enclosure != "" {
		info.EnclosureVersion = m.Enclosure
	}
	return info
}
