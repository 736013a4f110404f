package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/embedding"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is used for answer generation
	DefaultChatModel = "gpt-4o-mini"
	// DefaultTimeout bounds each API request
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrNoAPIKey is returned when no OpenAI API key is configured
	ErrNoAPIKey = errors.New("OpenAI API key not set")
	// ErrNoChoices is returned when a completion has no choices
	ErrNoChoices = errors.New("no completion choices returned")
)

// API defines the subset of the OpenAI API the client depends on
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	CreateCompletion(ctx context.Context, prompt string) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api        API
	model      string
	dimensions int
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	dimensions     int
	chatModel      string
	temperature    float32
	maxTokens      int
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float64
	MaxTokens           int
	Timeout             time.Duration
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.EmbeddingDimensions,
		chatModel:      cfg.ChatModel,
		temperature:    float32(cfg.Temperature),
		maxTokens:      cfg.MaxTokens,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings in input order
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	}
	// Only text-embedding-3 models accept a requested size.
	if a.dimensions > 0 {
		req.Dimensions = a.dimensions
	}
	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, asGenerationError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CreateCompletion sends the prompt as a single user message
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", asGenerationError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func asGenerationError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.GenerationError{Backend: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.GenerationError{Backend: "openai", StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}

// NewClient creates a new OpenAI client with explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	model := string(cfg.EmbeddingModel)
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Complete generates an answer for the prompt
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	answer, err := c.api.CreateCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// GenerateEmbeddings generates one embedding per text
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	for _, e := range embeddings {
		if len(e) != c.dimensions {
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d: %w", len(e), c.dimensions, domain.ErrDimensionMismatch)
		}
	}

	return embeddings, nil
}

func (c *Client) Name() string { return "openai/" + c.model }

func (c *Client) Dimension() int { return c.dimensions }

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.GenerateEmbeddings(ctx, texts)
}

// EmbeddingLoader exposes the client as an embedding model.
func (c *Client) EmbeddingLoader() embedding.Loader {
	return func(ctx context.Context) (embedding.Model, error) {
		return c, nil
	}
}
