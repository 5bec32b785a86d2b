package config

import (
	"time"

	"github.com/diintechteam9/cab-tracker/internal/utils"
)

type TrackingConfig struct {
	InterpolationDuration time.Duration `yaml:"interpolation_duration"`
	EnforceLinks          bool          `yaml:"enforce_links"`
	LinkSecret            string        `yaml:"link_secret"`
	LinkTTL               time.Duration `yaml:"link_ttl"`
	PublicBaseURL         string        `yaml:"public_base_url"`
}

func loadTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		InterpolationDuration: getEnvAsDuration("TRACKING_INTERPOLATION_DURATION", utils.DefaultInterpolationDuration),
		EnforceLinks:          getEnvAsBool("TRACKING_ENFORCE_LINKS", false),
		LinkSecret:            getEnv("TRACKING_LINK_SECRET", ""),
		LinkTTL:               getEnvAsDuration("TRACKING_LINK_TTL", utils.DefaultLinkTTL),
		PublicBaseURL:         getEnv("TRACKING_PUBLIC_BASE_URL", getEnv("APP_BASE_URL", "http://localhost:5173")),
	}
}
