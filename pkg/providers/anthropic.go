package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

const anthropicVersion = "2023-06-01"

// AnthropicAdapter implements the Adapter interface for the Anthropic
// Messages API
type AnthropicAdapter struct {
	*BaseAdapter
	client  *http.Client
	baseURL string
	apiKey  string
}

// anthropicMessage represents a message in Anthropic format
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicRequest represents the request format for the Anthropic API
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float32            `json:"temperature,omitempty"`
	TopP        float32            `json:"top_p,omitempty"`
}

// anthropicResponse represents the response format from the Anthropic API
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	StopReason string `json:"stop_reason"`
}

// NewAnthropicAdapter creates a new Anthropic adapter
func NewAnthropicAdapter(baseURL, apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{
		BaseAdapter: NewBaseAdapter(),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Invoke performs chat completion using the Anthropic API
func (a *AnthropicAdapter) Invoke(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (core.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 // the Messages API requires max_tokens
	}

	anthropicReq := anthropicRequest{
		Model:     apiModelName(mc.ID),
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return core.Completion{}, &PermanentError{Provider: mc.Provider, Model: mc.ID, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return core.Completion{}, &PermanentError{Provider: mc.Provider, Model: mc.ID, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return core.Completion{}, classifyError(mc.Provider, mc.ID, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(body))
		return core.Completion{}, classifyError(mc.Provider, mc.ID, resp.StatusCode, err)
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return core.Completion{}, &TransientError{Provider: mc.Provider, Model: mc.ID, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	var text string
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	return core.Completion{
		Text: text,
		Usage: core.Usage{
			PromptTokens:     anthropicResp.Usage.InputTokens,
			CompletionTokens: anthropicResp.Usage.OutputTokens,
			TotalTokens:      anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
		},
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: anthropicResp.StopReason,
	}, nil
}

// CreateAnthropicAdapterFromConfig creates an Anthropic adapter from model config
func CreateAnthropicAdapterFromConfig(mc registry.ModelConfig) (*AnthropicAdapter, error) {
	apiKey := os.Getenv(mc.APIKeyEnv)
	if apiKey == "" {
		return nil, &PermanentError{
			Provider: mc.Provider,
			Model:    mc.ID,
			Err:      errors.New("API key not found in environment variable " + mc.APIKeyEnv),
		}
	}

	return NewAnthropicAdapter(mc.BaseURL, apiKey), nil
}
