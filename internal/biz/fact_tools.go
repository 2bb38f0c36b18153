package biz

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// API is the subset of Client's behavior FactTools and the clarify ReAct
// tools depend on; tests supply a fake implementation instead of a real
// HTTP client. FactTools itself never calls GetBillingRules directly — it
// is here only because the clarify package's query_billing_rules_by_params
// tool shares this same interface.
type API interface {
	GetArrearsOrders(ctx context.Context, plateNo, cityCode *string) ([]Order, error)
	GetParkingOrder(ctx context.Context, orderNo string) (Order, error)
	GetBillingRules(ctx context.Context, cityCode *string, lotCode string) ([]BillingRule, error)
	SimulateBilling(ctx context.Context, ruleCode string, entry, exit time.Time) (SimulationResult, error)
}

var _ API = (*Client)(nil)

// FactTools composes arrears_check/fee_verify structured facts from an API
// client, converting HTTP/transport errors into the structured error codes
// spec §7 enumerates instead of letting them propagate — the original
// Python tool layer this is grounded on does not perform this conversion
// itself, so it is added here at the call boundary.
type FactTools struct {
	client API
}

// NewFactTools wraps client.
func NewFactTools(client API) *FactTools {
	return &FactTools{client: client}
}

func classifyErr(err error, httpKind, requestKind string) string {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return httpKind
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return requestKind
	}
	return requestKind
}

// BuildArrearsFacts implements the arrears_check branch's fact gathering.
func (t *FactTools) BuildArrearsFacts(ctx context.Context, plateNo, cityCode *string) map[string]interface{} {
	facts := map[string]interface{}{
		"intent":           string(domain.IntentArrearsCheck),
		"attempted_tools":  []string{"GET /api/v1/arrears-orders"},
	}
	if plateNo != nil {
		facts["plate_no"] = *plateNo
	}
	if cityCode != nil {
		facts["city_code"] = *cityCode
	}

	orders, err := t.client.GetArrearsOrders(ctx, plateNo, cityCode)
	if err != nil {
		facts["error"] = classifyErr(err, "arrears_tool_http_error", "arrears_tool_request_error")
		return facts
	}

	orderNos := make([]string, 0, len(orders))
	for _, o := range orders {
		orderNos = append(orderNos, o.OrderNo)
	}
	facts["arrears_count"] = len(orders)
	facts["arrears_order_nos"] = orderNos
	facts["orders"] = orders
	return facts
}

// BuildFeeVerifyFacts implements the fee_verify branch's fact gathering:
// look up the order, derive the simulate_fee inputs (preferring explicit
// hints over the order's own values), simulate, and compare totals at 2dp
// HALF_UP.
func (t *FactTools) BuildFeeVerifyFacts(ctx context.Context, orderNo string, hints domain.FeeVerifyHints) map[string]interface{} {
	facts := map[string]interface{}{
		"intent": string(domain.IntentFeeVerify),
	}
	var attempted []string

	if orderNo == "" {
		facts["error"] = "order_no is required for fee_verify"
		facts["attempted_tools"] = attempted
		return facts
	}
	facts["order_no"] = orderNo

	attempted = append(attempted, "GET /api/v1/parking-orders/"+orderNo)
	order, err := t.client.GetParkingOrder(ctx, orderNo)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			facts["error"] = "order_not_found"
		} else {
			facts["error"] = classifyErr(err, "order_tool_http_error", "order_tool_request_error")
		}
		facts["attempted_tools"] = attempted
		return facts
	}

	ruleCode := order.BillingRuleCode
	if hints.RuleCode != nil && *hints.RuleCode != "" {
		ruleCode = *hints.RuleCode
	}

	entryTime := order.EntryTime
	if hints.EntryTime != nil {
		entryTime = *hints.EntryTime
	}
	if entryTime.IsZero() {
		facts["error"] = "entry_time is invalid for fee_verify"
		facts["attempted_tools"] = attempted
		return facts
	}

	exitTime := order.ExitTime
	if hints.ExitTime != nil {
		exitTime = *hints.ExitTime
	}
	if exitTime.IsZero() {
		facts["error"] = "exit_time is required for fee_verify"
		facts["attempted_tools"] = attempted
		return facts
	}
	if !exitTime.After(entryTime) {
		facts["error"] = "exit_time is invalid for fee_verify"
		facts["attempted_tools"] = attempted
		return facts
	}

	attempted = append(attempted, "POST /api/v1/billing-rules/simulate")
	simulation, err := t.client.SimulateBilling(ctx, ruleCode, entryTime, exitTime)
	if err != nil {
		facts["error"] = classifyErr(err, "simulate_tool_http_error", "simulate_tool_request_error")
		facts["attempted_tools"] = attempted
		return facts
	}

	orderAmount := decimal.NewFromFloat(order.TotalAmount).Round(2)
	simAmount := decimal.NewFromFloat(simulation.TotalAmount).Round(2)

	facts["order_total_amount"] = orderAmount.StringFixed(2)
	facts["simulated_total_amount"] = simAmount.StringFixed(2)
	if orderAmount.Equal(simAmount) {
		facts["amount_check_result"] = "一致"
		facts["amount_check_action"] = "自动通过"
	} else {
		facts["amount_check_result"] = "不一致"
		facts["amount_check_action"] = "需人工复核"
	}
	facts["attempted_tools"] = attempted
	return facts
}
