package narrative

import (
	"context"
	"strings"
	"time"
)

// Provider defaults.
const (
	DefaultOllamaURL   = "http://127.0.0.1:11434"
	DefaultOllamaModel = "llama3"
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o-mini"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messages(p Prompt) []chatMessage {
	var out []chatMessage
	if p.SystemPrompt != "" {
		out = append(out, chatMessage{Role: "system", Content: p.SystemPrompt})
	}
	return append(out, chatMessage{Role: "user", Content: p.UserPrompt})
}

// OllamaClient talks to a local Ollama runtime through /api/chat.
type OllamaClient struct {
	transport httpTransport
	baseURL   string
	model     string
}

// NewOllamaClient creates a client. Empty values take the defaults.
func NewOllamaClient(baseURL, model string, timeout time.Duration, retries int) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &OllamaClient{
		transport: newHTTPTransport(baseURL, timeout, retries),
		baseURL:   baseURL,
		model:     model,
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Generate sends a non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, p Prompt) (string, error) {
	req := ollamaChatRequest{Model: c.model, Messages: messages(p)}
	if p.Temperature > 0 {
		req.Options = map[string]any{"temperature": p.Temperature}
	}

	var resp ollamaChatResponse
	if err := c.transport.postJSON(ctx, c.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	transport httpTransport
	baseURL   string
	apiKey    string
	model     string
}

// NewOpenAIClient creates a client. Empty values take the defaults.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration, retries int) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &OpenAIClient{
		transport: newHTTPTransport(baseURL, timeout, retries),
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
	}
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends a chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	req := openAIRequest{Model: c.model, Messages: messages(p), Temperature: p.Temperature}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp openAIResponse
	if err := c.transport.postJSON(ctx, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
