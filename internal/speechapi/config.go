package speechapi

import (
	"fmt"
	"strings"
)

// Config holds the configuration for the speech service client
// Supports any provider exposing the four speech endpoints
//
// Environment Variables:
// - SPEECH_API_URL: API endpoint URL (required)
// - SPEECH_API_KEY: API key for the provider (optional for local services)
// - SPEECH_API_TIMEOUT: Request timeout in seconds (default: 60)
type Config struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Timeout int    `json:"timeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for speech API requests
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	return headers
}
