package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Client generates text with a self-hosted Ollama model
type Client struct {
	api   *api.Client
	model string
}

// NewClient connects to the server named by OLLAMA_HOST (default localhost:11434).
func NewClient(model string) (*Client, error) {
	apiClient, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &Client{api: apiClient, model: model}, nil
}

// NewClientWithBase connects to an explicit server address
func NewClientWithBase(base *url.URL, httpClient *http.Client, model string) *Client {
	return &Client{api: api.NewClient(base, httpClient), model: model}
}

// Generate sends a single prompt without conversation state
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var text strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return text.String(), nil
}
