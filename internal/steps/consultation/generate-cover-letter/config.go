// internal/steps/consultation/generate-cover-letter/config.go
package generatecoverletter

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		Temperature: 0.4,
	}
}
