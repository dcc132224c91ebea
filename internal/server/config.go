package server

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds HTTP server configuration parameters.
type Config struct {
	Port           string        // Port number to listen on
	ReadTimeout    time.Duration // Maximum duration for reading the entire request
	WriteTimeout   time.Duration // Maximum duration for writing the response
	IdleTimeout    time.Duration // Maximum duration to wait for next request with keep-alives
	MaxHeaderBytes int           // Maximum size of request headers
}

// Validate reports whether the server can listen with this configuration.
//
// A valid port is numeric and within 1-65535. Timeouts and the header limit
// may be zero (no limit) but not negative.
func (c *Config) Validate() error {
	portNum, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port number: %s (must be numeric)", c.Port)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port number: %s (must be between 1 and 65535)", c.Port)
	}

	for name, d := range map[string]time.Duration{
		"read timeout":  c.ReadTimeout,
		"write timeout": c.WriteTimeout,
		"idle timeout":  c.IdleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s: %s (must not be negative)", name, d)
		}
	}
	if c.MaxHeaderBytes < 0 {
		return fmt.Errorf("invalid max header bytes: %d (must not be negative)", c.MaxHeaderBytes)
	}
	return nil
}
