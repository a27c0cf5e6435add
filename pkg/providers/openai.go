package providers

import (
	"context"
	"errors"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// OpenAIAdapter implements the Adapter interface for OpenAI-compatible APIs
type OpenAIAdapter struct {
	*BaseAdapter
	client   *openai.Client
	provider string
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(baseURL, apiKey string) *OpenAIAdapter {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIAdapter{
		BaseAdapter: NewBaseAdapter(),
		client:      openai.NewClientWithConfig(config),
		provider:    "openai",
	}
}

// Invoke performs chat completion using the OpenAI API
func (a *OpenAIAdapter) Invoke(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (core.Completion, error) {
	request := openai.ChatCompletionRequest{
		Model: apiModelName(mc.ID),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}

	response, err := a.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return core.Completion{}, classifyError(a.provider, mc.ID, openaiStatusCode(err), err)
	}

	if len(response.Choices) == 0 {
		return core.Completion{}, &TransientError{Provider: a.provider, Model: mc.ID, Err: errors.New("empty choices in response")}
	}

	completion := core.Completion{
		Text: response.Choices[0].Message.Content,
		Usage: core.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: string(response.Choices[0].FinishReason),
	}

	if completion.Usage.TotalTokens == 0 {
		completion.Usage = a.EstimateUsage(mc.ID, req.Prompt, completion.Text)
	}

	return completion, nil
}

// openaiStatusCode extracts the HTTP status from go-openai error types
func openaiStatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// CreateOpenAIAdapterFromConfig creates an OpenAI adapter from model config
func CreateOpenAIAdapterFromConfig(mc registry.ModelConfig) (*OpenAIAdapter, error) {
	apiKey := os.Getenv(mc.APIKeyEnv)
	if apiKey == "" {
		return nil, &PermanentError{
			Provider: mc.Provider,
			Model:    mc.ID,
			Err:      errors.New("API key not found in environment variable " + mc.APIKeyEnv),
		}
	}

	adapter := NewOpenAIAdapter(mc.BaseURL, apiKey)
	adapter.provider = mc.Provider
	return adapter, nil
}
