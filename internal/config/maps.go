package config

type MapsConfig struct {
	Provider   string            `yaml:"provider"` // google, mapbox, none
	Region     string            `yaml:"region"`
	Language   string            `yaml:"language"`
	GoogleMaps *GoogleMapsConfig `yaml:"google_maps"`
	Mapbox     *MapboxConfig     `yaml:"mapbox"`
}

type GoogleMapsConfig struct {
	APIKey string `yaml:"api_key"`
}

type MapboxConfig struct {
	AccessToken string `yaml:"access_token"`
	BaseURL     string `yaml:"base_url"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Provider: getEnv("MAPS_PROVIDER", "google"),
		Region:   getEnv("MAPS_REGION", "in"),
		Language: getEnv("MAPS_LANGUAGE", "en"),
		GoogleMaps: &GoogleMapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Mapbox: &MapboxConfig{
			AccessToken: getEnv("MAPBOX_ACCESS_TOKEN", ""),
			BaseURL:     getEnv("MAPBOX_BASE_URL", ""),
		},
	}
}

// APIKey returns the credential for the selected provider.
func (m *MapsConfig) APIKey() string {
	if m.Provider == "mapbox" {
		return m.Mapbox.AccessToken
	}
	return m.GoogleMaps.APIKey
}

// Enabled reports whether a provider is selected and has credentials.
func (m *MapsConfig) Enabled() bool {
	return m.Provider != "none" && m.APIKey() != ""
}
