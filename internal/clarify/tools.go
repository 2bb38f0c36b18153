package clarify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newgpp/parksuite-core/internal/biz"
)

// lookupOrder maps a user-supplied order number to the order's core slots,
// or to a miss reason the agent can reason about.
func lookupOrder(ctx context.Context, api biz.API, orderNo string) map[string]interface{} {
	normalized := strings.ToUpper(strings.TrimSpace(orderNo))
	if normalized == "" {
		return map[string]interface{}{"tool": "lookup_order", "hit": false, "reason": "missing_order_no"}
	}
	order, err := api.GetParkingOrder(ctx, normalized)
	if err != nil {
		var httpErr *biz.HTTPStatusError
		if errors.As(err, &httpErr) {
			return map[string]interface{}{
				"tool": "lookup_order", "hit": false, "order_no": normalized,
				"reason": fmt.Sprintf("http_%d", httpErr.StatusCode),
			}
		}
		return map[string]interface{}{
			"tool": "lookup_order", "hit": false, "order_no": normalized,
			"reason": "request_error",
		}
	}
	return map[string]interface{}{
		"tool": "lookup_order", "hit": true, "order_no": normalized,
		"plate_no": order.PlateNo, "city_code": order.CityCode, "lot_code": order.LotCode,
	}
}

// queryBillingRulesByParams checks whether a lot_code (optionally scoped to
// a city_code) resolves to at least one active billing rule.
func queryBillingRulesByParams(ctx context.Context, api biz.API, lotCode, cityCode string) map[string]interface{} {
	normalizedLot := strings.ToUpper(strings.TrimSpace(lotCode))
	normalizedCity := strings.TrimSpace(cityCode)
	if normalizedLot == "" {
		return map[string]interface{}{"tool": "query_billing_rules_by_params", "hit": false, "reason": "missing_lot_code"}
	}
	var cityArg *string
	if normalizedCity != "" {
		cityArg = &normalizedCity
	}
	rules, err := api.GetBillingRules(ctx, cityArg, normalizedLot)
	if err != nil {
		var httpErr *biz.HTTPStatusError
		reason := "request_error"
		if errors.As(err, &httpErr) {
			reason = fmt.Sprintf("http_%d", httpErr.StatusCode)
		}
		return map[string]interface{}{
			"tool": "query_billing_rules_by_params", "hit": false,
			"lot_code": normalizedLot, "city_code": cityArg, "reason": reason,
		}
	}
	if len(rules) == 0 {
		return map[string]interface{}{
			"tool": "query_billing_rules_by_params", "hit": false,
			"lot_code": normalizedLot, "city_code": cityArg, "reason": "rule_not_found",
		}
	}
	ruleCodes := make([]string, 0, len(rules))
	for _, r := range rules {
		ruleCodes = append(ruleCodes, r.RuleCode)
	}
	return map[string]interface{}{
		"tool": "query_billing_rules_by_params", "hit": true,
		"lot_code": normalizedLot, "city_code": cityArg,
		"matched_rule_count": len(rules), "rule_codes": ruleCodes,
	}
}
