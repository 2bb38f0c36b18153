package clarify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/resolver"
)

const systemPrompt = `You are the clarification agent for a parking-operations assistant.
Respond with a single JSON object only, one of:
{"action":"call_tool","tool_name":"lookup_order"|"query_billing_rules_by_params","tool_args":{...}}
{"action":"ask_user","clarify_question":"...","intent_evidence":[...]}
{"action":"finish_clarify","resolved_intent":"rule_explain"|"arrears_check"|"fee_verify","route_target":"...","slot_updates":{...},"intent_evidence":[...]}
{"action":"abort","reason":"..."}
When a user token could be either an order_no or a lot_code, call lookup_order before
query_billing_rules_by_params and decide afterwards.`

// reactAction is the raw per-round JSON the model must emit.
type reactAction struct {
	Action          string            `json:"action"`
	ClarifyQuestion *string           `json:"clarify_question,omitempty"`
	SlotUpdates     map[string]string `json:"slot_updates,omitempty"`
	ResolvedIntent  *string           `json:"resolved_intent,omitempty"`
	RouteTarget     *string           `json:"route_target,omitempty"`
	IntentEvidence  []string          `json:"intent_evidence,omitempty"`
	Reason          *string           `json:"reason,omitempty"`
	ToolName        string            `json:"tool_name,omitempty"`
	ToolArgs        map[string]string `json:"tool_args,omitempty"`
}

// Agent is the ReActClarifyAgent.
type Agent struct {
	model    llms.Model
	api      biz.API
	validate func([]byte) error
	log      zerolog.Logger
}

// NewAgent builds an Agent. validate, if non-nil, schema-validates each raw
// per-round completion before it is decoded.
func NewAgent(model llms.Model, api biz.API, validate func([]byte) error, log zerolog.Logger) *Agent {
	return &Agent{model: model, api: api, validate: validate, log: log}
}

func slotsToMap(slots domain.Slots) map[string]string {
	out := map[string]string{}
	if slots.CityCode != nil {
		out["city_code"] = *slots.CityCode
	}
	if slots.LotCode != nil {
		out["lot_code"] = *slots.LotCode
	}
	if slots.PlateNo != nil {
		out["plate_no"] = *slots.PlateNo
	}
	if slots.OrderNo != nil {
		out["order_no"] = *slots.OrderNo
	}
	return out
}

func missingRequired(intent *domain.Intent, resolvedSlots map[string]string) []string {
	if intent == nil {
		return nil
	}
	var missing []string
	for _, name := range resolver.RequiredSlots(*intent) {
		if v, ok := resolvedSlots[name]; !ok || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func toLLMRole(role string) llms.ChatMessageType {
	switch role {
	case "assistant":
		return llms.ChatMessageTypeAI
	case "tool":
		return llms.ChatMessageTypeTool
	case "system":
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

func toLLMMessages(messages []domain.ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.MessageContent{
			Role:  toLLMRole(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return out
}

// Run executes the bounded ReAct loop for one gate invocation. history is
// the re-hydrated clarify_messages for the session; payload.Query is
// appended as the current turn before the first model call.
func (a *Agent) Run(ctx context.Context, payload domain.TurnRequest, history []domain.ChatMessage, maxRounds int) (domain.ClarifyResult, error) {
	if maxRounds < 1 {
		maxRounds = 3
	}
	recursionLimit := maxRounds * 2
	if recursionLimit < 4 {
		recursionLimit = 4
	}

	messages := make([]domain.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: payload.Query})

	resolvedSlots := slotsToMap(payload.Slots)
	var evidence []string
	var trace []string

	for round := 0; round < recursionLimit; round++ {
		started := time.Now()
		prompt := append([]domain.ChatMessage{{Role: "system", Content: systemPrompt}}, messages...)
		resp, err := a.model.GenerateContent(ctx, toLLMMessages(prompt))
		a.log.Debug().Int("round", round).Dur("elapsed", time.Since(started)).Msg("clarify_react round")
		if err != nil {
			return domain.ClarifyResult{Decision: domain.ClarifyAbort, Trace: trace}, fmt.Errorf("clarify: llm round %d: %w", round, err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return domain.ClarifyResult{Decision: domain.ClarifyAbort, Trace: trace}, fmt.Errorf("clarify: llm round %d: empty response", round)
		}
		raw := resp.Choices[0].Content

		if a.validate != nil {
			if err := a.validate([]byte(raw)); err != nil {
				return domain.ClarifyResult{Decision: domain.ClarifyAbort, Trace: trace}, fmt.Errorf("clarify: round %d schema validation: %w", round, err)
			}
		}

		var act reactAction
		if err := json.Unmarshal([]byte(raw), &act); err != nil {
			return domain.ClarifyResult{Decision: domain.ClarifyAbort, Trace: trace}, fmt.Errorf("clarify: round %d decode: %w", round, err)
		}
		messages = append(messages, domain.ChatMessage{Role: "assistant", Content: raw})

		switch act.Action {
		case "call_tool":
			var toolResult map[string]interface{}
			switch act.ToolName {
			case "lookup_order":
				toolResult = lookupOrder(ctx, a.api, act.ToolArgs["order_no"])
			case "query_billing_rules_by_params":
				toolResult = queryBillingRulesByParams(ctx, a.api, act.ToolArgs["lot_code"], act.ToolArgs["city_code"])
			default:
				toolResult = map[string]interface{}{"tool": act.ToolName, "hit": false, "reason": "unknown_tool"}
			}
			toolJSON, err := json.Marshal(toolResult)
			if err != nil {
				return domain.ClarifyResult{Decision: domain.ClarifyAbort, Trace: trace}, fmt.Errorf("clarify: encode tool result: %w", err)
			}
			toolCallID := fmt.Sprintf("tool-%d", round)
			messages = append(messages, domain.ChatMessage{Role: "tool", Content: string(toolJSON), ToolCallID: toolCallID})
			trace = append(trace, "clarify_react:tool:"+act.ToolName)
			continue

		case "ask_user", "finish_clarify", "abort":
			for k, v := range act.SlotUpdates {
				if v != "" {
					resolvedSlots[k] = v
				}
			}
			evidence = append(evidence, act.IntentEvidence...)

			var resolvedIntent, routeTarget *domain.Intent
			if act.ResolvedIntent != nil {
				if v, ok := domain.ValidIntent(*act.ResolvedIntent); ok {
					resolvedIntent = &v
				}
			}
			if act.RouteTarget != nil {
				if v, ok := domain.ValidIntent(*act.RouteTarget); ok {
					routeTarget = &v
				}
			}

			result := domain.ClarifyResult{
				ClarifyQuestion:      act.ClarifyQuestion,
				ResolvedSlots:        resolvedSlots,
				SlotUpdates:          act.SlotUpdates,
				ResolvedIntent:       resolvedIntent,
				RouteTarget:          routeTarget,
				IntentEvidence:       evidence,
				Trace:                trace,
				Messages:             messages,
			}

			switch act.Action {
			case "abort":
				result.Decision = domain.ClarifyAbort
			case "finish_clarify":
				missing := missingRequired(resolvedIntent, resolvedSlots)
				if len(missing) > 0 {
					result.Decision = domain.ClarifyReact
					result.MissingRequiredSlots = missing
					result.Trace = append(result.Trace, "clarify_react:finish_downgraded_to_ask_user")
				} else {
					result.Decision = domain.ClarifyContinueBusiness
				}
			default: // ask_user
				result.Decision = domain.ClarifyReact
			}
			return result, nil

		default:
			return domain.ClarifyResult{Decision: domain.ClarifyAbort, Trace: trace}, fmt.Errorf("clarify: round %d: unknown action %q", round, act.Action)
		}
	}

	trace = append(trace, "clarify_react:round_exhausted")
	return domain.ClarifyResult{Decision: domain.ClarifyReact, Trace: trace, Messages: messages, ResolvedSlots: resolvedSlots}, nil
}
