// Package biz implements BizApiClient, the typed HTTP client for the
// downstream parking-operations business API, and BizFactTools, which
// composes arrears_check/fee_verify facts from it.
package biz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// HTTPStatusError wraps a non-2xx business-API response, carrying the
// status code so callers can classify it into a structured error code.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("biz: http status %d from %s", e.StatusCode, e.URL)
}

// RequestError wraps a transport-level failure (DNS, connection refused,
// timeout) distinct from an HTTP error status.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("biz: request error to %s: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Order is the parking order shape returned by GET /parking-orders/{id}.
type Order struct {
	OrderNo         string    `json:"order_no"`
	PlateNo         string    `json:"plate_no"`
	CityCode        string    `json:"city_code"`
	LotCode         string    `json:"lot_code"`
	BillingRuleCode string    `json:"billing_rule_code"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
	TotalAmount     float64   `json:"total_amount"`
}

// BillingRule is one row returned by GET /billing-rules.
type BillingRule struct {
	RuleCode string `json:"rule_code"`
	LotCode  string `json:"lot_code"`
	CityCode string `json:"city_code"`
}

// SimulationResult is the body returned by POST /billing-rules/simulate.
type SimulationResult struct {
	TotalAmount float64 `json:"total_amount"`
}

// Client is the typed HTTP client for the business API. It propagates
// X-Trace-Id on every call and rate-limits outbound requests, since the
// business API is an external system that owns its own concurrency.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a Client against baseURL with the given per-call
// timeout. The transport prefers HTTP/2 where the server supports it.
func NewClient(baseURL string, timeout time.Duration) *Client {
	transport := &http.Transport{}
	_ = http2.ConfigureTransport(transport)
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		// 20 requests/sec with a burst of 10 keeps a single turn's handful
		// of biz calls well under a sane per-instance ceiling.
		limiter: rate.NewLimiter(rate.Limit(20), 10),
	}
}

// traceIDKey is the context key under which WithTraceID stores the trace
// id that traceIDFrom reads back.
type traceIDKey struct{}

// WithTraceID attaches a trace id to ctx for propagation as X-Trace-Id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func traceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("biz: rate limiter: %w", err)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("biz: encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("biz: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tid := traceIDFrom(ctx); tid != "" {
		req.Header.Set("X-Trace-Id", tid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{URL: fullURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody), URL: fullURL}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("biz: decode response from %s: %w", fullURL, err)
		}
	}
	return nil
}

// GetArrearsOrders calls GET /api/v1/arrears-orders.
func (c *Client) GetArrearsOrders(ctx context.Context, plateNo, cityCode *string) ([]Order, error) {
	q := url.Values{}
	if plateNo != nil {
		q.Set("plate_no", *plateNo)
	}
	if cityCode != nil {
		q.Set("city_code", *cityCode)
	}
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/arrears-orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetParkingOrder calls GET /api/v1/parking-orders/{order_no}.
func (c *Client) GetParkingOrder(ctx context.Context, orderNo string) (Order, error) {
	var out Order
	path := "/api/v1/parking-orders/" + url.PathEscape(orderNo)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// GetBillingRules calls GET /api/v1/billing-rules.
func (c *Client) GetBillingRules(ctx context.Context, cityCode *string, lotCode string) ([]BillingRule, error) {
	q := url.Values{}
	q.Set("lot_code", lotCode)
	if cityCode != nil {
		q.Set("city_code", *cityCode)
	}
	var out []BillingRule
	if err := c.do(ctx, http.MethodGet, "/api/v1/billing-rules", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SimulateBilling calls POST /api/v1/billing-rules/simulate.
func (c *Client) SimulateBilling(ctx context.Context, ruleCode string, entry, exit time.Time) (SimulationResult, error) {
	payload := map[string]interface{}{
		"rule_code":  ruleCode,
		"entry_time": entry.Format(time.RFC3339),
		"exit_time":  exit.Format(time.RFC3339),
	}
	var out SimulationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/billing-rules/simulate", nil, payload, &out); err != nil {
		return SimulationResult{}, err
	}
	return out, nil
}
