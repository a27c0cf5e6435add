package core

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InvocationRequest represents one routed model call
type InvocationRequest struct {
	Prompt               string            `json:"prompt"`
	RequiredCapabilities []string          `json:"required_capabilities,omitempty"`
	MaxCost              *float64          `json:"max_cost,omitempty"`
	PreferredModelID     string            `json:"preferred_model_id,omitempty"`
	Temperature          float32           `json:"temperature,omitempty"`
	TopP                 float32           `json:"top_p,omitempty"`
	MaxTokens            int               `json:"max_tokens,omitempty"`
	Caller               string            `json:"caller,omitempty"` // tenant/project
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// Completion is the normalized adapter response before the router
// attaches cost and attempt information
type Completion struct {
	Text         string `json:"text"`
	Usage        Usage  `json:"usage"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	FinishReason string `json:"finish_reason"`
}

// InvocationResult represents the outcome of a successful routed call
type InvocationResult struct {
	ModelID      string  `json:"model_id"`
	Provider     string  `json:"provider"`
	OutputText   string  `json:"output_text"`
	Usage        Usage   `json:"usage"`
	Cost         float64 `json:"cost"`
	Currency     string  `json:"currency"`
	LatencyMS    int64   `json:"latency_ms"`
	Attempt      int     `json:"attempt"`
	FinishReason string  `json:"finish_reason"`
}

// Model represents an available model in API responses
type Model struct {
	ID       string            `json:"id"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ModelsResponse represents the response for listing models
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}
