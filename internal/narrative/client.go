// Package narrative writes the executive summary and chat answers for an
// analysis. A language model is used when one is configured and reachable;
// otherwise a deterministic template produces the text.
package narrative

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

	"integralq/internal/config"
)

// Prompt is one generation request.
type Prompt struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// UnreachableError means the provider could not be contacted.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("llm endpoint unreachable at %s: %v", e.Host, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx response from the provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm provider error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm provider error: status=%d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// NewGenerator builds the configured provider. Provider "none" returns nil,
// which makes the Narrator use templates only.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.MaxRetries), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm provider openai requires an API key")
		}
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// httpTransport is the request/retry loop shared by the providers.
type httpTransport struct {
	client    *http.Client
	host      string
	attempts  int
	baseDelay time.Duration
}

func newHTTPTransport(host string, timeout time.Duration, retries int) httpTransport {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return httpTransport{
		client:    &http.Client{Timeout: timeout},
		host:      host,
		attempts:  retries + 1,
		baseDelay: 200 * time.Millisecond,
	}
}

// postJSON sends body to url and decodes a 2xx response into out. Network
// failures and retryable statuses are retried with exponential backoff.
func (t httpTransport) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	backoff := t.baseDelay
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = t.once(ctx, url, headers, payload, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == t.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func (t httpTransport) once(ctx context.Context, url string, headers map[string]string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &UnreachableError{Host: t.host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &ProviderError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts "error" (string or {message}) or "message" from a body.
func errorMessage(raw []byte) string {
	var body map[string]any
	if json.Unmarshal(raw, &body) != nil {
		return string(bytes.TrimSpace(raw))
	}
	switch v := body["error"].(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	if msg, ok := body["message"].(string); ok {
		return msg
	}
	return ""
}

func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	var ue *UnreachableError
	if errors.As(err, &ue) {
		var ne net.Error
		if errors.As(ue.Err, &ne) && ne.Timeout() {
			return true
		}
		return !errors.Is(ue.Err, context.Canceled) && !errors.Is(ue.Err, context.DeadlineExceeded)
	}
	return false
}
