// Package enrichment looks up third-party routing data for a barcode before
// rule evaluation. The lookup is best effort with a bounded deadline; the
// optional Redis cache keeps repeat barcodes off the upstream service.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"parcel-sorter/internal/common/errors"
	"parcel-sorter/internal/common/logging"
)

// HTTPConfig configures the lookup client.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// maxResponseBytes caps how much of an upstream response is read.
const maxResponseBytes = 1 << 20

// HTTPClient posts a barcode to the lookup endpoint and returns the raw
// response body. The body is opaque here; the API-response matchers decide
// what it means.
type HTTPClient struct {
	config *HTTPConfig
	client *http.Client
	logger logging.Logger
}

// NewHTTPClient creates a lookup client.
func NewHTTPClient(config *HTTPConfig) (*HTTPClient, error) {
	if config == nil || config.URL == "" {
		return nil, errors.ConfigError("enrichment url is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logging.WithFields(
			logging.String("component", "enrichment-client"),
			logging.String("url", config.URL),
		),
	}, nil
}

type lookupRequest struct {
	Barcode string `json:"barcode"`
}

// Enrich posts the barcode and returns the response body as a string.
// Non-2xx responses are errors; the caller treats any error as "no payload".
func (c *HTTPClient) Enrich(ctx context.Context, barcode string) (string, error) {
	payload, err := json.Marshal(lookupRequest{Barcode: barcode})
	if err != nil {
		return "", errors.InternalError("failed to marshal lookup request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.InternalError("failed to create lookup request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.ConnectionError("enrichment lookup failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.ConnectionError("failed to read lookup response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.ConnectionError("enrichment lookup returned an error status", nil).
			WithContext("status", resp.StatusCode)
	}

	c.logger.Debug("enrichment lookup completed",
		logging.String("barcode", barcode),
		logging.Int("bytes", len(body)),
	)
	return string(body), nil
}
