// Package ollama talks to a local Ollama server for generation and embeddings.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/embedding"
)

// Default configuration values.
const (
	DefaultBaseURL        = "http://localhost:11434"
	DefaultModel          = "llama3"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultTimeout        = 60 * time.Second
	DefaultTemperature    = 0.3
	DefaultMaxTokens      = 512
)

// Config holds configuration for the Ollama client.
type Config struct {
	BaseURL string
	// Model is used for /api/generate.
	Model string
	// EmbeddingModel is used for /api/embed.
	EmbeddingModel string
	// EmbeddingDimensions is the expected vector size. Zero asks the model on first use.
	EmbeddingDimensions int
	Timeout             time.Duration
	Temperature         float64
	MaxTokens           int
}

// Client calls the Ollama HTTP API.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewClient creates a new Ollama client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

// Complete sends a non-streaming generate request and returns the trimmed response text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: &options{
			NumPredict:  c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// Embed returns one embedding per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.cfg.EmbeddingModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.GenerationError{Backend: "ollama", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type embeddingModel struct {
	client *Client
	dim    int
}

func (m *embeddingModel) Name() string   { return "ollama/" + m.client.cfg.EmbeddingModel }
func (m *embeddingModel) Dimension() int { return m.dim }

func (m *embeddingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return m.client.Embed(ctx, texts)
}

// EmbeddingLoader returns a Loader that resolves the embedding dimension,
// probing the server once when it is not configured.
func (c *Client) EmbeddingLoader() embedding.Loader {
	return func(ctx context.Context) (embedding.Model, error) {
		dim := c.cfg.EmbeddingDimensions
		if dim <= 0 {
			sample, err := c.Embed(ctx, []string{"dimension check"})
			if err != nil {
				return nil, fmt.Errorf("detect embedding dimension: %w", err)
			}
			dim = len(sample[0])
		}
		return &embeddingModel{client: c, dim: dim}, nil
	}
}
