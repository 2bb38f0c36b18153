package clarify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

type fakeReactRunner struct {
	result domain.ClarifyResult
	err    error
	called bool
}

func (f *fakeReactRunner) Run(_ context.Context, _ domain.TurnRequest, _ []domain.ChatMessage, _ int) (domain.ClarifyResult, error) {
	f.called = true
	return f.result, f.err
}

func feeVerifyIntent() *domain.Intent {
	v := domain.IntentFeeVerify
	return &v
}

// P1: known intent with no missing slots never touches the LLM.
func TestGateContinuesBusinessWithoutReact(t *testing.T) {
	react := &fakeReactRunner{}
	gate := NewGate(react, 3)

	intent := domain.IntentArrearsCheck
	parsed := domain.IntentSlotParseResult{Intent: &intent}
	hydrated := domain.SlotHydrateResult{Payload: domain.TurnRequest{Query: "沪A00001 欠费吗"}}

	result := gate.Decide(context.Background(), parsed, hydrated, nil)

	require.Equal(t, domain.DecisionContinueBusiness, result.Decision)
	require.False(t, react.called)
}

func TestGateShortCircuitsOnMissingOrderNo(t *testing.T) {
	react := &fakeReactRunner{}
	gate := NewGate(react, 3)

	parsed := domain.IntentSlotParseResult{Intent: feeVerifyIntent()}
	hydrated := domain.SlotHydrateResult{MissingRequiredSlots: []string{"order_no"}}

	result := gate.Decide(context.Background(), parsed, hydrated, nil)

	require.Equal(t, domain.DecisionClarifyShortCircuit, result.Decision)
	require.Equal(t, "missing_order_no", *result.ClarifyReason)
	require.False(t, react.called)
}

// P2: continue_business with resolved_intent=null rewrites to missing_intent.
func TestGateRewritesNullResolvedIntentToMissingIntent(t *testing.T) {
	react := &fakeReactRunner{result: domain.ClarifyResult{Decision: domain.ClarifyContinueBusiness}}
	gate := NewGate(react, 3)

	result := gate.Decide(context.Background(), domain.IntentSlotParseResult{}, domain.SlotHydrateResult{}, nil)

	require.Equal(t, domain.DecisionClarifyReact, result.Decision)
	require.Equal(t, "missing_intent", *result.ClarifyReason)
}

// P3: route_target != resolved_intent (both non-null) -> intent_route_mismatch.
func TestGateDetectsIntentRouteMismatch(t *testing.T) {
	resolved := domain.IntentArrearsCheck
	route := domain.IntentFeeVerify
	react := &fakeReactRunner{result: domain.ClarifyResult{
		Decision:       domain.ClarifyContinueBusiness,
		ResolvedIntent: &resolved,
		RouteTarget:    &route,
	}}
	gate := NewGate(react, 3)

	result := gate.Decide(context.Background(), domain.IntentSlotParseResult{}, domain.SlotHydrateResult{}, nil)

	require.Equal(t, domain.DecisionClarifyReact, result.Decision)
	require.Equal(t, "intent_route_mismatch", *result.ClarifyReason)
}

func TestGateAcceptsMatchingRouteAndResolvedIntent(t *testing.T) {
	resolved := domain.IntentFeeVerify
	react := &fakeReactRunner{result: domain.ClarifyResult{
		Decision:       domain.ClarifyContinueBusiness,
		ResolvedIntent: &resolved,
		RouteTarget:    &resolved,
		ResolvedSlots:  map[string]string{"order_no": "SCN-020"},
	}}
	gate := NewGate(react, 3)

	result := gate.Decide(context.Background(), domain.IntentSlotParseResult{}, domain.SlotHydrateResult{}, nil)

	require.Equal(t, domain.DecisionContinueBusiness, result.Decision)
	require.Equal(t, "fee_verify", *result.Payload.IntentHint)
}

func TestGatePropagatesClarifyAbort(t *testing.T) {
	react := &fakeReactRunner{result: domain.ClarifyResult{Decision: domain.ClarifyAbort}}
	gate := NewGate(react, 3)

	result := gate.Decide(context.Background(), domain.IntentSlotParseResult{}, domain.SlotHydrateResult{}, nil)

	require.Equal(t, domain.DecisionClarifyAbort, result.Decision)
}

func TestGateFallsBackOnReactError(t *testing.T) {
	react := &fakeReactRunner{err: errors.New("llm timeout")}
	gate := NewGate(react, 3)

	result := gate.Decide(context.Background(), domain.IntentSlotParseResult{}, domain.SlotHydrateResult{}, nil)

	require.Equal(t, domain.DecisionClarifyShortCircuit, result.Decision)
	require.Equal(t, "clarify_fallback", *result.ClarifyReason)
	require.Equal(t, "llm timeout", *result.ClarifyError)
}
