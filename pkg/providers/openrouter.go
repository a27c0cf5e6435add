package providers

import (
	"context"
	"errors"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// OpenRouterAdapter implements the Adapter interface for OpenRouter
// (OpenAI-compatible API)
type OpenRouterAdapter struct {
	*BaseAdapter
	client *openai.Client
}

// NewOpenRouterAdapter creates a new OpenRouter adapter
func NewOpenRouterAdapter(baseURL, apiKey string) *OpenRouterAdapter {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenRouterAdapter{
		BaseAdapter: NewBaseAdapter(),
		client:      openai.NewClientWithConfig(config),
	}
}

// Invoke performs chat completion using the OpenRouter API
func (a *OpenRouterAdapter) Invoke(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (core.Completion, error) {
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
		return core.Completion{}, classifyError(mc.Provider, mc.ID, openaiStatusCode(err), err)
	}

	if len(response.Choices) == 0 {
		return core.Completion{}, &TransientError{Provider: mc.Provider, Model: mc.ID, Err: errors.New("empty choices in response")}
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

// CreateOpenRouterAdapterFromConfig creates an OpenRouter adapter from model config
func CreateOpenRouterAdapterFromConfig(mc registry.ModelConfig) (*OpenRouterAdapter, error) {
	apiKey := os.Getenv(mc.APIKeyEnv)
	if apiKey == "" {
		return nil, &PermanentError{
			Provider: mc.Provider,
			Model:    mc.ID,
			Err:      errors.New("API key not found in environment variable " + mc.APIKeyEnv),
		}
	}

	return NewOpenRouterAdapter(mc.BaseURL, apiKey), nil
}
