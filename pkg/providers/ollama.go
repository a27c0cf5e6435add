package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// OllamaAdapter implements the Adapter interface for the Ollama API
type OllamaAdapter struct {
	*BaseAdapter
	client  *http.Client
	baseURL string
}

// ollamaMessage represents a message in Ollama format
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaRequest represents the request format for the Ollama chat API
type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ollamaResponse represents the response format from the Ollama chat API
type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllamaAdapter creates a new Ollama adapter
func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	return &OllamaAdapter{
		BaseAdapter: NewBaseAdapter(),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
	}
}

// Invoke performs chat completion using the Ollama API
func (a *OllamaAdapter) Invoke(ctx context.Context, mc registry.ModelConfig, req core.InvocationRequest) (core.Completion, error) {
	options := map[string]interface{}{}
	if req.Temperature != 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP != 0 {
		options["top_p"] = req.TopP
	}
	if req.MaxTokens != 0 {
		options["num_predict"] = req.MaxTokens
	}

	ollamaReq := ollamaRequest{
		Model: apiModelName(mc.ID),
		Messages: []ollamaMessage{
			{Role: "user", Content: req.Prompt},
		},
		Stream:  false,
		Options: options,
	}

	reqBody, err := json.Marshal(ollamaReq)
	if err != nil {
		return core.Completion{}, &PermanentError{Provider: mc.Provider, Model: mc.ID, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return core.Completion{}, &PermanentError{Provider: mc.Provider, Model: mc.ID, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return core.Completion{}, classifyError(mc.Provider, mc.ID, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
		return core.Completion{}, classifyError(mc.Provider, mc.ID, resp.StatusCode, err)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return core.Completion{}, &TransientError{Provider: mc.Provider, Model: mc.ID, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	completion := core.Completion{
		Text: ollamaResp.Message.Content,
		Usage: core.Usage{
			PromptTokens:     ollamaResp.PromptEvalCount,
			CompletionTokens: ollamaResp.EvalCount,
			TotalTokens:      ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
		},
		Model:        mc.ID,
		Provider:     mc.Provider,
		FinishReason: ollamaResp.DoneReason,
	}

	if completion.Usage.TotalTokens == 0 {
		completion.Usage = a.EstimateUsage(mc.ID, req.Prompt, completion.Text)
	}

	return completion, nil
}

// CreateOllamaAdapterFromConfig creates an Ollama adapter from model config
func CreateOllamaAdapterFromConfig(mc registry.ModelConfig) *OllamaAdapter {
	return NewOllamaAdapter(mc.BaseURL)
}
