package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/newgpp/parksuite-core/internal/domain"
)

const noEvidenceConclusion = "没有足够的检索证据或业务事实来回答这个问题，请补充信息后重试。"

type synthesisJSON struct {
	Conclusion string   `json:"conclusion"`
	KeyPoints  []string `json:"key_points"`
}

// Synthesizer is the AnswerSynthesizer: it turns retrieved chunks and
// business facts into a final conclusion plus supporting key points.
type Synthesizer struct {
	model    llms.Model
	modelID  string
	validate func([]byte) error
}

// NewSynthesizer builds a Synthesizer. validate, if non-nil, schema-validates
// the raw completion before it is decoded.
func NewSynthesizer(model llms.Model, modelID string, validate func([]byte) error) *Synthesizer {
	return &Synthesizer{model: model, modelID: modelID, validate: validate}
}

// Synthesize returns the fixed no-evidence conclusion when both items and
// facts are empty, skipping the LLM call entirely; otherwise it prompts for
// strict JSON and falls back to the raw completion as the conclusion on
// parse failure.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, items []domain.RetrievedItem, facts map[string]interface{}, intent *domain.Intent) (domain.AnswerResult, error) {
	if len(items) == 0 && len(facts) == 0 {
		return domain.AnswerResult{Conclusion: noEvidenceConclusion, KeyPoints: nil, ModelID: s.modelID}, nil
	}

	prompt, err := s.buildPrompt(query, items, facts, intent)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	resp, err := s.model.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	})
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("workflow: synthesize: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return domain.AnswerResult{}, fmt.Errorf("workflow: synthesize: empty response")
	}
	raw := resp.Choices[0].Content

	if s.validate != nil {
		if err := s.validate([]byte(raw)); err == nil {
			var parsed synthesisJSON
			if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
				return domain.AnswerResult{Conclusion: parsed.Conclusion, KeyPoints: parsed.KeyPoints, ModelID: s.modelID}, nil
			}
		}
		return domain.AnswerResult{Conclusion: strings.TrimSpace(raw), KeyPoints: nil, ModelID: s.modelID}, nil
	}

	var parsed synthesisJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.AnswerResult{Conclusion: strings.TrimSpace(raw), KeyPoints: nil, ModelID: s.modelID}, nil
	}
	return domain.AnswerResult{Conclusion: parsed.Conclusion, KeyPoints: parsed.KeyPoints, ModelID: s.modelID}, nil
}

func (s *Synthesizer) buildPrompt(query string, items []domain.RetrievedItem, facts map[string]interface{}, intent *domain.Intent) (string, error) {
	var b strings.Builder
	b.WriteString("You are answering a parking-operations question. Respond with strict JSON only:\n")
	b.WriteString(`{"conclusion": "...", "key_points": ["..."]}` + "\n")
	if intent != nil {
		fmt.Fprintf(&b, "Intent: %s\n", string(*intent))
	}
	fmt.Fprintf(&b, "Query: %s\n", query)

	if len(facts) > 0 {
		factsJSON, err := json.Marshal(facts)
		if err != nil {
			return "", fmt.Errorf("workflow: encode facts: %w", err)
		}
		fmt.Fprintf(&b, "Business facts: %s\n", factsJSON)
	}
	if len(items) > 0 {
		b.WriteString("Retrieved knowledge chunks:\n")
		for _, item := range items {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", item.SourceID, item.Title, item.Content)
		}
	}
	return b.String(), nil
}
