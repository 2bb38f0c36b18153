package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

type fakeAPI struct {
	arrears        []Order
	arrearsErr     error
	order          Order
	orderErr       error
	billingRules   []BillingRule
	billingRulesErr error
	simulation     SimulationResult
	simulateErr    error
}

func (f *fakeAPI) GetArrearsOrders(_ context.Context, _, _ *string) ([]Order, error) {
	return f.arrears, f.arrearsErr
}

func (f *fakeAPI) GetParkingOrder(_ context.Context, _ string) (Order, error) {
	return f.order, f.orderErr
}

func (f *fakeAPI) GetBillingRules(_ context.Context, _ *string, _ string) ([]BillingRule, error) {
	return f.billingRules, f.billingRulesErr
}

func (f *fakeAPI) SimulateBilling(_ context.Context, _ string, _, _ time.Time) (SimulationResult, error) {
	return f.simulation, f.simulateErr
}

func TestBuildArrearsFactsCountsOrders(t *testing.T) {
	api := &fakeAPI{arrears: []Order{{OrderNo: "SCN-001"}, {OrderNo: "SCN-002"}}}
	facts := NewFactTools(api).BuildArrearsFacts(context.Background(), nil, nil)
	require.Equal(t, 2, facts["arrears_count"])
	require.Nil(t, facts["error"])
}

func TestBuildArrearsFactsHTTPErrorBecomesStructuredCode(t *testing.T) {
	api := &fakeAPI{arrearsErr: &HTTPStatusError{StatusCode: 500, URL: "x"}}
	facts := NewFactTools(api).BuildArrearsFacts(context.Background(), nil, nil)
	require.Equal(t, "arrears_tool_http_error", facts["error"])
}

// Scenario 1: fee verify mismatch.
func TestBuildFeeVerifyFactsMismatch(t *testing.T) {
	entry := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	exit := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		order: Order{
			OrderNo: "SCN-020", BillingRuleCode: "R1",
			EntryTime: entry, ExitTime: exit, TotalAmount: 6.00,
		},
		simulation: SimulationResult{TotalAmount: 4.00},
	}
	facts := NewFactTools(api).BuildFeeVerifyFacts(context.Background(), "SCN-020", domain.FeeVerifyHints{})
	require.Equal(t, "不一致", facts["amount_check_result"])
	require.Equal(t, "需人工复核", facts["amount_check_action"])
}

func TestBuildFeeVerifyFactsOrderNotFound(t *testing.T) {
	api := &fakeAPI{orderErr: &HTTPStatusError{StatusCode: 404, URL: "x"}}
	facts := NewFactTools(api).BuildFeeVerifyFacts(context.Background(), "SCN-999", domain.FeeVerifyHints{})
	require.Equal(t, "order_not_found", facts["error"])
}

func TestBuildFeeVerifyFactsRequiresOrderNo(t *testing.T) {
	facts := NewFactTools(&fakeAPI{}).BuildFeeVerifyFacts(context.Background(), "", domain.FeeVerifyHints{})
	require.Equal(t, "order_no is required for fee_verify", facts["error"])
}
