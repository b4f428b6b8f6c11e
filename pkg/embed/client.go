// Package embed provides a client for OpenAI-compatible text embedding APIs.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client produces embedding vectors for text.
type Client interface {
	// Embed returns the embedding vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Option configures the embedding client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing or self-hosted models).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithDimensions sets the expected vector dimension. Responses of any other
// length are rejected.
func WithDimensions(dims int) Option {
	return func(c *httpClient) {
		c.dimensions = dims
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	http       *http.Client
}

// NewClient creates an embedding client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		model:      "text-embedding-3-small",
		dimensions: 1536,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text. A vector of the wrong
// dimension or an all-zero vector is an error; callers never persist a
// placeholder embedding.
func (c *httpClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, eris.New("embed: empty text")
	}

	payload, err := json.Marshal(embedRequest{
		Input:      text,
		Model:      c.model,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, eris.Wrap(err, "embed: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "embed: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "embed: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "embed: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("embed: api returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "embed: parse response")
	}
	if len(parsed.Data) == 0 {
		return nil, eris.New("embed: empty response")
	}

	vec := parsed.Data[0].Embedding
	if c.dimensions > 0 && len(vec) != c.dimensions {
		return nil, eris.Errorf("embed: got %d dimensions, want %d", len(vec), c.dimensions)
	}
	if isZero(vec) {
		return nil, eris.New("embed: all-zero vector")
	}
	return vec, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
