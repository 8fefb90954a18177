package config

// Backend presets.
const (
	PresetProduction = "production"
	PresetStaging    = "staging"
	PresetLocal      = "local"
)

// APIPreset returns the API configuration for a named backend. Unknown names
// get the production preset.
func APIPreset(name string) APIConfig {
	switch name {
	case PresetStaging:
		return stagingPreset()
	case PresetLocal:
		return localPreset()
	default:
		return productionPreset()
	}
}

func productionPreset() APIConfig {
	return APIConfig{
		Preset:  PresetProduction,
		BaseURL: "https://api.researchpulse.app",
	}
}

func stagingPreset() APIConfig {
	return APIConfig{
		Preset:  PresetStaging,
		BaseURL: "https://staging.api.researchpulse.app",
	}
}

// localPreset targets a backend started from its repo with default flags.
func localPreset() APIConfig {
	return APIConfig{
		Preset:  PresetLocal,
		BaseURL: "http://localhost:8080",
	}
}
