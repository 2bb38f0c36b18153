package clarify

import (
	"context"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// ReactRunner is the interface ReactClarifyGate depends on for step 3; the
// real implementation is *Agent, fakes stand in for it in tests.
type ReactRunner interface {
	Run(ctx context.Context, payload domain.TurnRequest, history []domain.ChatMessage, maxRounds int) (domain.ClarifyResult, error)
}

var _ ReactRunner = (*Agent)(nil)

// Gate is the ReactClarifyGate: the single authority deciding how the
// resolver leaves off — straight into the workflow, or into a
// clarification of one of three kinds.
type Gate struct {
	react     ReactRunner
	maxRounds int
}

// NewGate builds a Gate. maxRounds bounds the ReActClarifyAgent invocation.
func NewGate(react ReactRunner, maxRounds int) *Gate {
	if maxRounds < 1 {
		maxRounds = 3
	}
	return &Gate{react: react, maxRounds: maxRounds}
}

func reasonPtr(s string) *string { return &s }

// Decide implements the five-step top-down decision policy. parsed is the
// IntentSlotParser's output (for Intent); hydrated is the SlotHydrator's
// output (for the merged slots and recomputed MissingRequiredSlots);
// history is the session's prior clarify_messages, replayed into the ReAct
// agent when invoked.
func (g *Gate) Decide(ctx context.Context, parsed domain.IntentSlotParseResult, hydrated domain.SlotHydrateResult, history []domain.ChatMessage) domain.GateResult {
	// Step 1: intent known, nothing missing.
	if parsed.Intent != nil && len(hydrated.MissingRequiredSlots) == 0 {
		return domain.GateResult{
			Decision: domain.DecisionContinueBusiness,
			Payload:  hydrated.Payload,
			Trace:    []string{"clarify_gate:continue_business"},
		}
	}

	// Step 2: intent known, required slots missing — deterministic
	// short-circuit, never touches the LLM.
	if parsed.Intent != nil && len(hydrated.MissingRequiredSlots) > 0 {
		reason := "missing_required_slots"
		for _, name := range hydrated.MissingRequiredSlots {
			if name == "order_no" {
				reason = "missing_order_no"
				break
			}
			if name == "plate_no" {
				reason = "missing_plate_no"
				break
			}
		}
		return domain.GateResult{
			Decision:      domain.DecisionClarifyShortCircuit,
			Payload:       hydrated.Payload,
			ClarifyReason: reasonPtr(reason),
			Trace:         []string{"clarify_gate:short_circuit:" + reason},
		}
	}

	// Step 3: intent unknown — invoke the ReAct agent once.
	result, err := g.react.Run(ctx, hydrated.Payload, history, g.maxRounds)
	if err != nil {
		// Step 4: ReAct raised/timed out.
		return domain.GateResult{
			Decision:      domain.DecisionClarifyShortCircuit,
			Payload:       hydrated.Payload,
			ClarifyReason: reasonPtr("clarify_fallback"),
			ClarifyError:  reasonPtr(err.Error()),
			Trace:         []string{"clarify_gate:clarify_fallback"},
		}
	}

	// Step 5: normalize the ReAct output.
	return g.normalize(hydrated.Payload, result)
}

func (g *Gate) normalize(payload domain.TurnRequest, result domain.ClarifyResult) domain.GateResult {
	base := domain.GateResult{
		Payload:         payload,
		Trace:           append([]string{}, result.Trace...),
		ClarifyMessages: result.Messages,
		ClarifyQuestion: result.ClarifyQuestion,
	}

	switch result.Decision {
	case domain.ClarifyContinueBusiness:
		if result.ResolvedIntent == nil {
			base.Decision = domain.DecisionClarifyReact
			base.ClarifyReason = reasonPtr("missing_intent")
			base.Trace = append(base.Trace, "clarify_gate:missing_intent")
			return base
		}
		routeMatches := result.RouteTarget == nil || *result.RouteTarget == *result.ResolvedIntent
		missing := missingRequired(result.ResolvedIntent, result.ResolvedSlots)
		if routeMatches && len(missing) == 0 {
			base.Decision = domain.DecisionContinueBusiness
			hint := string(*result.ResolvedIntent)
			base.Payload.IntentHint = &hint
			base.Trace = append(base.Trace, "clarify_gate:continue_business")
			return base
		}
		if !routeMatches {
			base.Decision = domain.DecisionClarifyReact
			base.ClarifyReason = reasonPtr("intent_route_mismatch")
			base.Trace = append(base.Trace, "clarify_gate:intent_route_mismatch")
			return base
		}
		base.Decision = domain.DecisionClarifyReact
		base.ClarifyReason = reasonPtr("clarify_react_required")
		base.Trace = append(base.Trace, "clarify_gate:clarify_react_required")
		return base

	case domain.ClarifyAbort:
		base.Decision = domain.DecisionClarifyAbort
		base.Trace = append(base.Trace, "clarify_gate:clarify_abort")
		return base

	default: // ClarifyReact
		base.Decision = domain.DecisionClarifyReact
		base.ClarifyReason = reasonPtr("clarify_react_required")
		base.Trace = append(base.Trace, "clarify_gate:clarify_react_required")
		return base
	}
}
