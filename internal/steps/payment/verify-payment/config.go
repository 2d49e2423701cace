// internal/steps/payment/verify-payment/config.go
package verifypayment

import "time"

type Config struct {
	// Timeout bounds the processor lookup only; generation carries its own
	// per-step timeouts.
	Timeout time.Duration
	// LeaseTTL bounds how long one instance may hold a consultation's
	// fulfilment lease.
	LeaseTTL time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second, LeaseTTL: 5 * time.Minute}
}
