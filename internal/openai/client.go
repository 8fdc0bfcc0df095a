// Package openai provides a unified client for OpenAI API access
// with support for both Azure OpenAI (primary) and OpenAI platform (fallback)
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatlens/internal/config"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	completionTemperature = 0.3
	completionMaxTokens   = 1000
)

// Client wraps OpenAI client with Azure OpenAI support and fallback capability
type Client struct {
	primary       *openai.Client
	fallback      *openai.Client
	useAzure      bool
	gptModel      string
	embedModel    openai.EmbeddingModel
	providerName  string
	timeout       time.Duration
	maxInputChars int
	logger        zerolog.Logger
}

// NewClient creates a new OpenAI client with Azure as primary and OpenAI as fallback
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	client := &Client{
		timeout:       time.Duration(cfg.OpenAITimeout) * time.Second,
		maxInputChars: cfg.EmbeddingMaxInputChars,
		logger:        logger.With().Str("component", "openai").Logger(),
	}

	if cfg.UseAzureOpenAI() {
		azureConfig := openai.DefaultAzureConfig(cfg.AzureOpenAIKey, cfg.AzureOpenAIEndpoint)
		client.primary = openai.NewClientWithConfig(azureConfig)
		client.useAzure = true
		client.gptModel = cfg.AzureOpenAIGPTDeployment
		client.embedModel = openai.EmbeddingModel(cfg.AzureOpenAIEmbeddingDeployment)
		client.providerName = "Azure OpenAI"

		client.logger.Info().Str("endpoint", cfg.AzureOpenAIEndpoint).Msg("Primary provider: Azure OpenAI")
	}

	if cfg.HasOpenAIFallback() {
		client.fallback = openai.NewClient(cfg.OpenAIKey)

		if !client.useAzure {
			client.primary = client.fallback
			client.fallback = nil
			client.gptModel = openai.GPT4oMini
			client.embedModel = openai.SmallEmbedding3
			client.providerName = "OpenAI"

			client.logger.Info().Msg("Primary provider: OpenAI (Azure not configured)")
		} else {
			client.logger.Info().Msg("Fallback provider: OpenAI")
		}
	}

	if client.primary == nil {
		return nil, fmt.Errorf("no OpenAI provider configured: set AZURE_OPENAI_ENDPOINT + AZURE_OPENAI_KEY or OPENAI_API_KEY")
	}

	if client.timeout <= 0 {
		client.timeout = 60 * time.Second
	}

	return client, nil
}

// TestConnection verifies the API connection works
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.CreateEmbeddings(ctx, []string{"test"}); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.providerName, err)
	}

	c.logger.Info().Str("provider", c.providerName).Msg("Connection test successful")
	return nil
}

// Complete sends a single-turn prompt and returns the text of the first choice
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.CreateChatCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, completionMaxTokens, completionTemperature)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text, truncated to the configured input length
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	if c.maxInputChars > 0 {
		if runes := []rune(text); len(runes) > c.maxInputChars {
			text = string(runes[:c.maxInputChars])
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned no vectors")
	}
	return vectors[0], nil
}

// CreateEmbeddings generates embeddings for the given texts
func (c *Client) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.primary.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.embedModel,
	})

	if err != nil && c.fallback != nil {
		c.logger.Warn().Err(err).Msg("Primary embedding failed, trying fallback")
		resp, err = c.fallback.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.SmallEmbedding3,
		})
		if err != nil {
			return nil, fmt.Errorf("both providers failed: %w", err)
		}
		c.logger.Info().Msg("Fallback embedding succeeded")
	} else if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}

	return embeddings, nil
}

// CreateChatCompletion generates a chat completion
func (c *Client) CreateChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, temperature float32) (*openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.gptModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	resp, err := c.primary.CreateChatCompletion(ctx, req)
	if err != nil && c.fallback != nil {
		c.logger.Warn().Err(err).Msg("Primary chat failed, trying fallback")
		req.Model = openai.GPT4oMini
		resp, err = c.fallback.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("both providers failed: %w", err)
		}
		c.logger.Info().Msg("Fallback chat succeeded")
	} else if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ModelName returns the GPT model/deployment name being used
func (c *Client) ModelName() string {
	return c.gptModel
}

// GetProviderName returns the current primary provider name
func (c *Client) GetProviderName() string {
	return c.providerName
}

// IsUsingAzure returns true if Azure OpenAI is the primary provider
func (c *Client) IsUsingAzure() bool {
	return c.useAzure
}
