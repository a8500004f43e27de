package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/biomatch/model"
)

// Client calls a remote extraction service over HTTP.
//
// Protocol: POST {baseURL}/extract/{type} with the raw image as body.
//   - 200: {"vector": [..]}
//   - 422: no biometric detected
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// APIKey, if set, is sent as the X-API-Key header.
	APIKey string
	// Timeout bounds each extraction call. Defaults to 30s. Callers can
	// tighten it further per request via context.
	Timeout time.Duration
	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// NewClient creates a remote extractor client.
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{Timeout: 30 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{baseURL: baseURL, apiKey: opts.APIKey, httpClient: hc}
}

type extractResponse struct {
	Vector []float32 `json:"vector"`
}

// Extract implements Extractor.
func (c *Client) Extract(ctx context.Context, t model.Type, image []byte) ([]float32, error) {
	url := fmt.Sprintf("%s/extract/%s", c.baseURL, t)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out extractResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("extractor: decode response: %w", err)
		}
		if len(out.Vector) == 0 {
			return nil, fmt.Errorf("extractor: empty vector in response")
		}
		return out.Vector, nil
	case http.StatusUnprocessableEntity:
		return nil, ErrNoBiometricDetected
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extractor: unexpected status %d: %s", resp.StatusCode, body)
	}
}
