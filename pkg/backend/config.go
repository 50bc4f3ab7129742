package backend

import (
	"fmt"
	"net/url"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up flags for the backend client and returns the instance.
// It uses lflag to register command-line flags for configuration.
func Configured() *Client {
	c := newClient()
	baseURL := lflag.String("backend-url", "http://localhost:3000", "Base URL of the energy monitoring backend")
	deviceID := lflag.String("device-id", "1", "ID of the monitored device on the backend")

	lflag.Do(func() {
		c.baseURL = *baseURL
		c.deviceID = *deviceID
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("backend validation failed: %v", err))
		}
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.baseURL == "" {
		return fmt.Errorf("backend-url is required")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse backend url (%s): %w", c.baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend url (%s) must be http or https", c.baseURL)
	}
	if c.deviceID == "" {
		return fmt.Errorf("device-id is required")
	}
	return nil
}
