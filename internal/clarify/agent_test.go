package clarify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/domain"
)

// sequenceModel returns one canned completion per call, in order.
type sequenceModel struct {
	responses []string
	calls     int
}

func (m *sequenceModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	idx := m.calls
	m.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.responses[idx]}}}, nil
}

func TestAgentFinishesWithResolvedIntent(t *testing.T) {
	model := &sequenceModel{responses: []string{
		`{"action":"finish_clarify","resolved_intent":"arrears_check","slot_updates":{"plate_no":"沪A00001"},"intent_evidence":["plate mentioned"]}`,
	}}
	agent := NewAgent(model, &fakeBizAPI{}, nil, zerolog.Nop())

	result, err := agent.Run(context.Background(), domain.TurnRequest{Query: "沪A00001 欠费吗"}, nil, 3)

	require.NoError(t, err)
	require.Equal(t, domain.ClarifyContinueBusiness, result.Decision)
	require.Equal(t, domain.IntentArrearsCheck, *result.ResolvedIntent)
	require.Equal(t, "沪A00001", result.ResolvedSlots["plate_no"])
}

func TestAgentDowngradesFinishWithMissingSlotsToAskUser(t *testing.T) {
	model := &sequenceModel{responses: []string{
		`{"action":"finish_clarify","resolved_intent":"fee_verify"}`,
	}}
	agent := NewAgent(model, &fakeBizAPI{}, nil, zerolog.Nop())

	result, err := agent.Run(context.Background(), domain.TurnRequest{Query: "费用对不对"}, nil, 3)

	require.NoError(t, err)
	require.Equal(t, domain.ClarifyReact, result.Decision)
	require.Equal(t, []string{"order_no"}, result.MissingRequiredSlots)
}

func TestAgentExecutesToolCallThenFinishes(t *testing.T) {
	model := &sequenceModel{responses: []string{
		`{"action":"call_tool","tool_name":"lookup_order","tool_args":{"order_no":"SCN-020"}}`,
		`{"action":"finish_clarify","resolved_intent":"fee_verify","slot_updates":{"order_no":"SCN-020"}}`,
	}}
	api := &fakeBizAPI{order: biz.Order{PlateNo: "沪A00001", LotCode: "LOT1"}}
	agent := NewAgent(model, api, nil, zerolog.Nop())

	result, err := agent.Run(context.Background(), domain.TurnRequest{Query: "SCN-020 对不对"}, nil, 3)

	require.NoError(t, err)
	require.Equal(t, domain.ClarifyContinueBusiness, result.Decision)
	require.Contains(t, result.Trace, "clarify_react:tool:lookup_order")
}

func TestAgentAbort(t *testing.T) {
	model := &sequenceModel{responses: []string{`{"action":"abort","reason":"unresolvable"}`}}
	agent := NewAgent(model, &fakeBizAPI{}, nil, zerolog.Nop())

	result, err := agent.Run(context.Background(), domain.TurnRequest{Query: "???"}, nil, 3)

	require.NoError(t, err)
	require.Equal(t, domain.ClarifyAbort, result.Decision)
}

func TestAgentRoundExhaustion(t *testing.T) {
	toolResp := `{"action":"call_tool","tool_name":"lookup_order","tool_args":{"order_no":"SCN-020"}}`
	model := &sequenceModel{responses: []string{toolResp, toolResp, toolResp, toolResp, toolResp, toolResp}}
	agent := NewAgent(model, &fakeBizAPI{}, nil, zerolog.Nop())

	result, err := agent.Run(context.Background(), domain.TurnRequest{Query: "SCN-020"}, nil, 2)

	require.NoError(t, err)
	require.Equal(t, domain.ClarifyReact, result.Decision)
	require.Contains(t, result.Trace, "clarify_react:round_exhausted")
}
