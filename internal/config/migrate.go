package config

import (
	"fmt"
	"regexp"
	"strings"
)

// MigrationChange describes a single config change during migration.
type MigrationChange struct {
	Field       string
	Description string
}

// v1 configs carried the API version inside the server URL.
var versionSuffix = regexp.MustCompile(`/(v[0-9]+)/*$`)

// MigrateConfig migrates config to the latest schema version.
// Returns true if any changes were made, along with a list of changes.
func MigrateConfig(cfg *Config) (changed bool, changes []MigrationChange) {
	startVersion := cfg.SchemaVersion

	// Configs without schema_version are v1 (pre-versioning)
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = 1
	}

	// v1 → v2: split "https://host/v1" into url + version
	if cfg.SchemaVersion < 2 {
		if m := versionSuffix.FindStringSubmatch(cfg.Server.URL); m != nil {
			oldURL := cfg.Server.URL
			cfg.Server.URL = strings.TrimSuffix(versionSuffix.ReplaceAllString(oldURL, ""), "/")
			cfg.Server.Version = m[1]
			changes = append(changes,
				MigrationChange{
					Field:       "server.url",
					Description: fmt.Sprintf("%s -> %s", oldURL, cfg.Server.URL),
				},
				MigrationChange{
					Field:       "server.version",
					Description: fmt.Sprintf("set to %s", cfg.Server.Version),
				},
			)
		} else if trimmed := strings.TrimRight(cfg.Server.URL, "/"); trimmed != cfg.Server.URL {
			changes = append(changes, MigrationChange{
				Field:       "server.url",
				Description: "trailing slash removed",
			})
			cfg.Server.URL = trimmed
		}
		cfg.SchemaVersion = 2
	}

	changed = cfg.SchemaVersion != startVersion
	return changed, changes
}

// NeedsMigration returns true if the config needs migration.
func NeedsMigration(cfg *Config) bool {
	return cfg.SchemaVersion < CurrentSchemaVersion
}
