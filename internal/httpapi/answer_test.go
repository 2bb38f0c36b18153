package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/clarify"
	"github.com/newgpp/parksuite-core/internal/config"
	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/knowledge"
	"github.com/newgpp/parksuite-core/internal/memory"
	"github.com/newgpp/parksuite-core/internal/resolver"
	"github.com/newgpp/parksuite-core/internal/workflow"
)

type fakeBizAPI struct {
	orders []biz.Order
	order  biz.Order
}

func (f *fakeBizAPI) GetArrearsOrders(_ context.Context, _, _ *string) ([]biz.Order, error) {
	return f.orders, nil
}

func (f *fakeBizAPI) GetParkingOrder(_ context.Context, _ string) (biz.Order, error) {
	return f.order, nil
}

func (f *fakeBizAPI) GetBillingRules(_ context.Context, _ *string, _ string) ([]biz.BillingRule, error) {
	return nil, nil
}

func (f *fakeBizAPI) SimulateBilling(_ context.Context, _ string, _, _ time.Time) (biz.SimulationResult, error) {
	return biz.SimulationResult{}, nil
}

type stubModel struct{ response string }

func (m *stubModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	facts := biz.NewFactTools(&fakeBizAPI{orders: []biz.Order{{OrderNo: "SCN-1", PlateNo: "沪A12345"}}})
	repo := knowledge.NewFakeRepository()
	synth := workflow.NewSynthesizer(&stubModel{response: `{"conclusion":"该车牌存在欠费","key_points":["SCN-1"]}`}, "stub-model", nil)
	wf, err := workflow.NewHybridWorkflow(facts, repo, nil, synth)
	require.NoError(t, err)

	parser := resolver.NewParser(nil, nil)
	hydrator := resolver.NewHydrator()
	agent := clarify.NewAgent(nil, &fakeBizAPI{}, nil, zerolog.Nop())
	gate := clarify.NewGate(agent, 3)

	cfg := &config.Settings{MemoryTTLSeconds: 1800, MemoryMaxTurns: 20, MemoryMaxClarifyMessages: 20}

	return NewServer(":0", zerolog.Nop(), nil, Deps{
		Config:   cfg,
		MemStore: memory.NewInProcessStore(),
		Repo:     repo,
		Parser:   parser,
		Hydrator: hydrator,
		Gate:     gate,
		React:    agent,
		Workflow: wf,
	})
}

func TestHandleAnswerHybridArrearsCheckContinuesBusiness(t *testing.T) {
	s := newTestServer(t)

	body := domain.TurnRequest{
		TurnID:     "t1",
		Query:      "车牌沪A12345欠费多少",
		IntentHint: strPtr("arrears_check"),
		Slots:      domain.Slots{PlateNo: strPtr("沪A12345")},
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/answer/hybrid", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	var resp domain.HybridAnswerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "arrears_check", resp.Intent)
	require.Empty(t, resp.Citations)
}

func TestHandleAnswerHybridMissingSlotShortCircuits(t *testing.T) {
	s := newTestServer(t)

	body := domain.TurnRequest{
		TurnID:     "t2",
		Query:      "这笔订单收费对吗",
		IntentHint: strPtr("fee_verify"),
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/answer/hybrid", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	var resp domain.HybridAnswerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "clarify_short_circuit", resp.Intent)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
}

func strPtr(s string) *string { return &s }
