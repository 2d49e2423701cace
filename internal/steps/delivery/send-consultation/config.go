// internal/steps/delivery/send-consultation/config.go
package sendconsultation

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled   bool
	FromEmail string
	// TopicARN is optional; completion events are skipped without it.
	TopicARN string
	Timeout  time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
