// internal/common/http/client.go
package http

import (
	"net/http"
	"strconv"
	"time"

	"visa-guru/internal/common/metrics"
)

const userAgent = "visa-guru-api/1.0"

// Client is the outbound HTTP client handed to the provider and payment
// SDKs. Every request is counted per upstream.
type Client struct {
	httpClient *http.Client
}

func NewClient(upstream string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &instrumentedTransport{
				upstream: upstream,
				next: &http.Transport{
					Proxy:               http.ProxyFromEnvironment,
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 10,
					IdleConnTimeout:     90 * time.Second,
				},
			},
		},
	}
}

// Do satisfies the Do-only interfaces of SDK clients.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// Standard returns the underlying *http.Client for SDKs that need the concrete type.
func (c *Client) Standard() *http.Client {
	return c.httpClient
}

type instrumentedTransport struct {
	upstream string
	next     http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	metrics.UpstreamDuration.WithLabelValues(t.upstream).Observe(time.Since(start).Seconds())

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(t.upstream, status).Inc()
	return resp, err
}
