// internal/steps/payment/create-checkout/config.go
package createcheckout

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	AmountCents int64
	Currency    string
	FrontendURL string
	Timeout     time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		AmountCents: 4900,
		Currency:    "usd",
		FrontendURL: "http://localhost:3000",
		Timeout:     30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.AmountCents <= 0 {
		return fmt.Errorf("amount_cents must be positive")
	}
	if c.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if c.FrontendURL == "" {
		return fmt.Errorf("frontend_url is required")
	}
	return nil
}

// successURL keeps the {CHECKOUT_SESSION_ID} template literal for Stripe and
// escapes the caller-supplied consultation id.
func (c *Config) successURL(consultationID string) string {
	return fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}&consultation_id=%s",
		strings.TrimRight(c.FrontendURL, "/"), url.QueryEscape(consultationID))
}

func (c *Config) cancelURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/cancel"
}
