package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/newgpp/parksuite-core/internal/cache"
)

// CachedClient decorates an API with a short-TTL read-through cache, so a
// turn that calls the same arrears/order/rules lookup twice in quick
// succession (a clarify round re-checking a slot, a retry after a
// clarify_error) doesn't double the load on the business API.
// SimulateBilling is never cached: its result depends on wall-clock-bound
// rule versions and is cheap enough to always recompute.
type CachedClient struct {
	inner API
	c     cache.Cache
}

// NewCachedClient wraps inner with c. A nil c disables caching entirely,
// so callers that don't wire a cache.Cache instance still get a valid API.
func NewCachedClient(inner API, c cache.Cache) *CachedClient {
	return &CachedClient{inner: inner, c: c}
}

var _ API = (*CachedClient)(nil)

func (c *CachedClient) GetArrearsOrders(ctx context.Context, plateNo, cityCode *string) ([]Order, error) {
	if c.c == nil {
		return c.inner.GetArrearsOrders(ctx, plateNo, cityCode)
	}
	key, err := cacheKeyArrears(plateNo, cityCode)
	if err != nil {
		return c.inner.GetArrearsOrders(ctx, plateNo, cityCode)
	}
	var cached []Order
	if hit, _ := c.c.GetJSON(ctx, key, &cached); hit {
		return cached, nil
	}
	orders, err := c.inner.GetArrearsOrders(ctx, plateNo, cityCode)
	if err != nil {
		return nil, err
	}
	_ = c.c.SetJSON(ctx, key, orders, cache.BizArrearsTTL)
	return orders, nil
}

func (c *CachedClient) GetParkingOrder(ctx context.Context, orderNo string) (Order, error) {
	if c.c == nil {
		return c.inner.GetParkingOrder(ctx, orderNo)
	}
	key := cacheKeyOrder(orderNo)
	var cached Order
	if hit, _ := c.c.GetJSON(ctx, key, &cached); hit {
		return cached, nil
	}
	order, err := c.inner.GetParkingOrder(ctx, orderNo)
	if err != nil {
		return Order{}, err
	}
	_ = c.c.SetJSON(ctx, key, order, cache.BizOrderTTL)
	return order, nil
}

func (c *CachedClient) GetBillingRules(ctx context.Context, cityCode *string, lotCode string) ([]BillingRule, error) {
	if c.c == nil {
		return c.inner.GetBillingRules(ctx, cityCode, lotCode)
	}
	key, err := cacheKeyRules(cityCode, lotCode)
	if err != nil {
		return c.inner.GetBillingRules(ctx, cityCode, lotCode)
	}
	var cached []BillingRule
	if hit, _ := c.c.GetJSON(ctx, key, &cached); hit {
		return cached, nil
	}
	rules, err := c.inner.GetBillingRules(ctx, cityCode, lotCode)
	if err != nil {
		return nil, err
	}
	_ = c.c.SetJSON(ctx, key, rules, cache.BizRulesTTL)
	return rules, nil
}

func (c *CachedClient) SimulateBilling(ctx context.Context, ruleCode string, entry, exit time.Time) (SimulationResult, error) {
	return c.inner.SimulateBilling(ctx, ruleCode, entry, exit)
}

func cacheKeyOrder(orderNo string) string {
	return fmt.Sprintf(cache.BizOrderKeyPattern, orderNo)
}

func cacheKeyArrears(plateNo, cityCode *string) (string, error) {
	hash, err := cache.HashKey(derefOr(plateNo, ""), derefOr(cityCode, ""))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(cache.BizArrearsKeyPattern, hash, derefOr(cityCode, "")), nil
}

func cacheKeyRules(cityCode *string, lotCode string) (string, error) {
	hash, err := cache.HashKey(derefOr(cityCode, ""), lotCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(cache.BizRulesKeyPattern, hash, lotCode), nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
