// Package resolver implements the first two resolver stages:
// IntentSlotParser (deterministic extraction + LLM augmentation) and
// SlotHydrator (memory-backed slot merge).
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/newgpp/parksuite-core/internal/domain"
)

var orderNoPattern = regexp.MustCompile(`(?i)SCN-\d+`)

var ambiguousOrderTokens = []string{"上一单", "上一笔", "这笔", "这单", "第一笔"}

// RequiredSlots returns the required-slot names for intent.
func RequiredSlots(intent domain.Intent) []string {
	switch intent {
	case domain.IntentFeeVerify:
		return []string{"order_no"}
	case domain.IntentArrearsCheck:
		return []string{"plate_no"}
	default:
		return nil
	}
}

func missingSlots(slots domain.Slots, required []string) []string {
	var missing []string
	for _, name := range required {
		switch name {
		case "order_no":
			if slots.OrderNo == nil || *slots.OrderNo == "" {
				missing = append(missing, name)
			}
		case "plate_no":
			if slots.PlateNo == nil || *slots.PlateNo == "" {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// llmSlotResult is the strict-JSON shape the LLM augmentation call must
// return.
type llmSlotResult struct {
	Intent           *string  `json:"intent"`
	IntentConfidence *float64 `json:"intent_confidence"`
	Slots            struct {
		OrderNo  *string `json:"order_no"`
		PlateNo  *string `json:"plate_no"`
		CityCode *string `json:"city_code"`
		LotCode  *string `json:"lot_code"`
	} `json:"slots"`
	Ambiguities []string `json:"ambiguities"`
}

// Parser is the IntentSlotParser. model may be nil, in which case the LLM
// augmentation phase is always skipped.
type Parser struct {
	model    llms.Model
	validate func([]byte) error
}

// NewParser builds a Parser. validate, if non-nil, schema-validates the raw
// LLM completion (via santhosh-tekuri/jsonschema) before it is decoded.
func NewParser(model llms.Model, validate func([]byte) error) *Parser {
	return &Parser{model: model, validate: validate}
}

// Parse runs the deterministic pass, then the LLM augmentation pass unless
// skipped, and returns the combined IntentSlotParseResult.
func (p *Parser) Parse(ctx context.Context, req domain.TurnRequest) domain.IntentSlotParseResult {
	result := domain.IntentSlotParseResult{
		Payload:      req,
		FieldSources: domain.FieldSources{},
	}

	var intent *domain.Intent
	if req.IntentHint != nil {
		if v, ok := domain.ValidIntent(*req.IntentHint); ok {
			intent = &v
		}
	}

	if result.Payload.Slots.OrderNo == nil {
		if m := orderNoPattern.FindString(req.Query); m != "" {
			normalized := strings.ToUpper(m)
			result.Payload.Slots.OrderNo = &normalized
			result.FieldSources["order_no"] = domain.SourceUser
		}
	} else {
		result.FieldSources["order_no"] = domain.SourceUser
	}
	if result.Payload.Slots.PlateNo != nil {
		result.FieldSources["plate_no"] = domain.SourceUser
	}
	if result.Payload.Slots.CityCode != nil {
		result.FieldSources["city_code"] = domain.SourceUser
	}
	if result.Payload.Slots.LotCode != nil {
		result.FieldSources["lot_code"] = domain.SourceUser
	}

	if result.Payload.Slots.OrderNo == nil {
		for _, tok := range ambiguousOrderTokens {
			if strings.Contains(req.Query, tok) {
				result.Ambiguities = append(result.Ambiguities, "order_reference")
				break
			}
		}
	}

	result.Trace = append(result.Trace, "intent_slot_parse:deterministic")

	skipLLM := p.model == nil || intent != nil
	if !skipLLM {
		if err := p.augmentWithLLM(ctx, req, &result); err != nil {
			result.Trace = append(result.Trace, "intent_slot_parse:llm_fallback")
		} else {
			result.Trace = append(result.Trace, "intent_slot_parse:llm_augmented")
		}
	}

	if intent == nil {
		intent = result.Intent
	}
	result.Intent = intent

	if intent != nil {
		result.MissingRequiredSlots = missingSlots(result.Payload.Slots, RequiredSlots(*intent))
	}
	return result
}

func (p *Parser) augmentWithLLM(ctx context.Context, req domain.TurnRequest, result *domain.IntentSlotParseResult) error {
	prompt := fmt.Sprintf(`You are an intent/slot extractor for a parking-operations assistant.
Given the user query below, respond with strict JSON only, matching exactly:
{"intent": "rule_explain"|"arrears_check"|"fee_verify"|null, "intent_confidence": number|null,
 "slots": {"order_no": string|null, "plate_no": string|null, "city_code": string|null, "lot_code": string|null},
 "ambiguities": [string]}
Query: %s`, req.Query)

	resp, err := p.model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	})
	if err != nil {
		return fmt.Errorf("resolver: llm augment: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return fmt.Errorf("resolver: llm augment: empty response")
	}
	raw := []byte(resp.Choices[0].Content)

	if p.validate != nil {
		if err := p.validate(raw); err != nil {
			return fmt.Errorf("resolver: llm augment: schema validation: %w", err)
		}
	}

	var parsed llmSlotResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("resolver: llm augment: decode: %w", err)
	}

	if parsed.Intent != nil {
		if v, ok := domain.ValidIntent(*parsed.Intent); ok {
			result.Intent = &v
		}
	}
	result.IntentConfidence = parsed.IntentConfidence
	result.Ambiguities = append(result.Ambiguities, parsed.Ambiguities...)

	fillInferred(&result.Payload.Slots.OrderNo, parsed.Slots.OrderNo, "order_no", result.FieldSources)
	fillInferred(&result.Payload.Slots.PlateNo, parsed.Slots.PlateNo, "plate_no", result.FieldSources)
	fillInferred(&result.Payload.Slots.CityCode, parsed.Slots.CityCode, "city_code", result.FieldSources)
	fillInferred(&result.Payload.Slots.LotCode, parsed.Slots.LotCode, "lot_code", result.FieldSources)
	return nil
}

// fillInferred fills *dst from src only when dst is currently null,
// recording the inferred source — a user-set value is never overwritten.
func fillInferred(dst **string, src *string, key string, sources domain.FieldSources) {
	if *dst != nil || src == nil || *src == "" {
		return
	}
	*dst = src
	sources[key] = domain.SourceInferred
}
