package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestParseExtractsOrderNoAndIntentHint(t *testing.T) {
	p := NewParser(nil, nil)
	hint := "fee_verify"
	req := domain.TurnRequest{Query: "请帮我核对一下 SCN-020 的费用", IntentHint: &hint}

	result := p.Parse(context.Background(), req)

	require.NotNil(t, result.Intent)
	require.Equal(t, domain.IntentFeeVerify, *result.Intent)
	require.NotNil(t, result.Payload.Slots.OrderNo)
	require.Equal(t, "SCN-020", *result.Payload.Slots.OrderNo)
	require.Equal(t, domain.SourceUser, result.FieldSources["order_no"])
	require.Empty(t, result.MissingRequiredSlots)
}

func TestParseFlagsOrderReferenceAmbiguity(t *testing.T) {
	p := NewParser(nil, nil)
	req := domain.TurnRequest{Query: "上一单多少钱"}

	result := p.Parse(context.Background(), req)

	require.Contains(t, result.Ambiguities, "order_reference")
	require.Nil(t, result.Payload.Slots.OrderNo)
}

func TestParseMissingRequiredSlotForFeeVerify(t *testing.T) {
	p := NewParser(nil, nil)
	hint := "fee_verify"
	req := domain.TurnRequest{Query: "费用对不对", IntentHint: &hint}

	result := p.Parse(context.Background(), req)

	require.Equal(t, []string{"order_no"}, result.MissingRequiredSlots)
}

func TestParseWithoutModelNeverSkipsDeterministicTrace(t *testing.T) {
	p := NewParser(nil, nil)
	req := domain.TurnRequest{Query: "沪A00001 欠费吗"}

	result := p.Parse(context.Background(), req)

	require.Contains(t, result.Trace, "intent_slot_parse:deterministic")
	require.NotContains(t, result.Trace, "intent_slot_parse:llm_augmented")
}
