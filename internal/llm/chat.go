package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewChatModel builds the DeepSeek chat model the resolver/clarify/workflow
// packages call GenerateContent against, the same openai.New construction
// the teacher uses for its own OpenAI-compatible endpoint.
func NewChatModel(apiKey, baseURL, model string) (llms.Model, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: new chat model: %w", err)
	}
	return llm, nil
}
