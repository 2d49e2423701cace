// internal/steps/consultation/generate-checklist/config.go
package generatechecklist

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	// ParseOutput replaces the baseline items with items parsed from the
	// generated text when parsing succeeds.
	ParseOutput bool
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		Temperature: 0.3,
	}
}
