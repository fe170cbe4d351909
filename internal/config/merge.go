package config

// MergeConfig merges defaults into existing config.
// Existing values take precedence; only missing fields are added from defaults.
func MergeConfig(existing, defaults *Config) *Config {
	result := *existing

	// NOTE: Don't update SchemaVersion here - let MigrateConfig handle it
	// This preserves the original version for migration detection

	if result.Server.URL == "" {
		result.Server.URL = defaults.Server.URL
	}
	if result.Server.Version == "" {
		result.Server.Version = defaults.Server.Version
	}

	if result.Identity.Path == "" {
		result.Identity.Path = defaults.Identity.Path
	}

	// Device fields are optional; empty means "not reported"
	if result.Device.VersionFile == "" {
		result.Device.VersionFile = defaults.Device.VersionFile
	}

	if result.Log.Level == "" {
		result.Log.Level = defaults.Log.Level
	}
	if result.Log.Format == "" {
		result.Log.Format = defaults.Log.Format
	}

	return &result
}
