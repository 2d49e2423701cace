// internal/steps/consultation/research-requirements/config.go
package researchrequirements

import "time"

type Config struct {
	Index    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Index:    "visa_requirements",
		Timeout:  5 * time.Second,
		CacheTTL: time.Hour,
	}
}
