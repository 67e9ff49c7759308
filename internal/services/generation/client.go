package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
)

const defaultTimeout = 60 * time.Second

// Client talks to the external image-model API. The model is an opaque
// collaborator: the client forwards the prompt and relays the result
// without interpreting it.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg *models.GenerationConfig) *Client {
	timeout := defaultTimeout
	if cfg != nil && cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	var endpoint, apiKey string
	if cfg != nil {
		endpoint = cfg.Endpoint
		apiKey = cfg.APIKey
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Output is the relevant slice of the model API's response.
type Output struct {
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// Generate forwards the request to the image model and returns its output.
// Failures map onto the app error taxonomy so the gateway can distinguish
// retryable upstream faults from timeouts.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*Output, error) {
	if c.endpoint == "" {
		return nil, models.NewUpstreamError("image model endpoint not configured", nil)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, models.NewInternalError("failed to encode generation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewInternalError("failed to build generation request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewTimeoutError("image generation", err)
		}
		return nil, models.NewUpstreamError("image model request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, models.NewUpstreamError("failed to read image model response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewUpstreamError(
			fmt.Sprintf("image model returned status %d", resp.StatusCode), nil)
	}

	var out Output
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, models.NewUpstreamError("failed to decode image model response", err)
	}

	return &out, nil
}
