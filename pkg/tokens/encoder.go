package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder represents a token encoder for a specific model
type Encoder interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
	Count(text string) (int, error)
}

// TiktokenEncoder implements Encoder using tiktoken-go
type TiktokenEncoder struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEncoder creates a new tiktoken encoder
func NewTiktokenEncoder(encodingName string) (*TiktokenEncoder, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}

	return &TiktokenEncoder{
		encoding: encoding,
	}, nil
}

// Encode converts text to tokens
func (e *TiktokenEncoder) Encode(text string) ([]int, error) {
	return e.encoding.Encode(text, nil, nil), nil
}

// Decode converts tokens to text
func (e *TiktokenEncoder) Decode(tokens []int) (string, error) {
	return e.encoding.Decode(tokens), nil
}

// Count returns the number of tokens in text
func (e *TiktokenEncoder) Count(text string) (int, error) {
	tokens := e.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// HeuristicEncoder implements Encoder with simple character-based counting
type HeuristicEncoder struct{}

// NewHeuristicEncoder creates a new heuristic encoder
func NewHeuristicEncoder() *HeuristicEncoder {
	return &HeuristicEncoder{}
}

// Encode converts text to placeholder tokens (character-based)
func (e *HeuristicEncoder) Encode(text string) ([]int, error) {
	count, _ := e.Count(text)
	tokens := make([]int, count)
	for i := 0; i < count; i++ {
		tokens[i] = i
	}
	return tokens, nil
}

// Decode converts tokens to text (not implemented)
func (e *HeuristicEncoder) Decode(tokens []int) (string, error) {
	return "", fmt.Errorf("heuristic decoder not implemented")
}

// Count returns the number of tokens in text (character-based)
func (e *HeuristicEncoder) Count(text string) (int, error) {
	// Simple estimation: ~4 characters per token
	count := len(text) / 4
	if count < 1 && len(text) > 0 {
		count = 1
	}
	return count, nil
}

// EncoderRegistry manages model-to-encoder mappings
type EncoderRegistry struct {
	encoders map[string]Encoder
	fallback Encoder
}

// NewEncoderRegistry creates a new encoder registry
func NewEncoderRegistry() *EncoderRegistry {
	return &EncoderRegistry{
		encoders: make(map[string]Encoder),
		fallback: NewHeuristicEncoder(),
	}
}

// RegisterEncoder registers an encoder for a model
func (r *EncoderRegistry) RegisterEncoder(modelID string, encoder Encoder) {
	r.encoders[modelID] = encoder
}

// GetEncoder returns the encoder for a model, or fallback if not found.
// Model IDs carry a provider prefix ("openai:gpt-4o"); the bare model
// name is consulted when the full ID has no registration.
func (r *EncoderRegistry) GetEncoder(modelID string) Encoder {
	if encoder, exists := r.encoders[modelID]; exists {
		return encoder
	}
	if _, name, found := strings.Cut(modelID, ":"); found {
		if encoder, exists := r.encoders[name]; exists {
			return encoder
		}
	}
	return r.fallback
}

// CountTokens counts tokens in text using the appropriate encoder
func (r *EncoderRegistry) CountTokens(modelID, text string) (int, error) {
	encoder := r.GetEncoder(modelID)
	return encoder.Count(text)
}

// GetDefaultRegistry returns a registry with common model encoders
func GetDefaultRegistry() *EncoderRegistry {
	registry := NewEncoderRegistry()

	// cl100k_base covers current OpenAI chat models and is a close
	// approximation for Anthropic models
	cl100kModels := []string{
		"gpt-4", "gpt-4-turbo", "gpt-4o", "gpt-4o-mini",
		"gpt-3.5-turbo", "gpt-3.5-turbo-16k",
		"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
		"claude-3-opus-20240229", "claude-3-haiku-20240307",
	}

	for _, model := range cl100kModels {
		if encoder, err := NewTiktokenEncoder("cl100k_base"); err == nil {
			registry.RegisterEncoder(model, encoder)
		}
	}

	// Local models get the heuristic encoder
	localModels := []string{
		"llama3.2", "codellama", "mistral", "mixtral",
	}

	for _, model := range localModels {
		registry.RegisterEncoder(model, NewHeuristicEncoder())
	}

	return registry
}
