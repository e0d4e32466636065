package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/exdash/exdash/internal/domain"
)

// Client is the REST client for the exchange backend. It handles order
// entry and the seed queries the push channels do not cover.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client for the given API root, e.g.
// "https://exchange.example.com/api/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitOrder places a new order and returns it as accepted by the exchange.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders/submit", req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: submit order: %w", err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.Order{}, fmt.Errorf("exchange: decode submit response: %w", err)
	}
	if !result.Success {
		return domain.Order{}, fmt.Errorf("exchange: %w: %s", domain.ErrOrderRejected, result.ErrorMsg)
	}

	return result.Order, nil
}

// ModifyOrder changes the price and/or quantity of an open order.
func (c *Client) ModifyOrder(ctx context.Context, orderID string, req domain.OrderModifyRequest) (domain.Order, error) {
	path := fmt.Sprintf("/orders/modify/%s", url.PathEscape(orderID))

	respBody, err := c.doRequest(ctx, http.MethodPut, path, req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("exchange: modify order %s: %w", orderID, err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.Order{}, fmt.Errorf("exchange: decode modify response: %w", err)
	}
	if !result.Success {
		return domain.Order{}, fmt.Errorf("exchange: %w: %s", domain.ErrOrderRejected, result.ErrorMsg)
	}

	return result.Order, nil
}

// CancelOrder cancels a single open order by its ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/orders/cancel/%s", url.PathEscape(orderID))

	respBody, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("exchange: cancel order %s: %w", orderID, err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("exchange: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("exchange: %w: %s", domain.ErrOrderRejected, result.ErrorMsg)
	}

	return nil
}

// OpenOrders returns the user's open orders for the symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	path := "/orders?symbol=" + url.QueryEscape(symbol)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: get open orders: %w", err)
	}

	var orders []domain.Order
	if err := json.Unmarshal(respBody, &orders); err != nil {
		return nil, fmt.Errorf("exchange: decode orders: %w", err)
	}

	return orders, nil
}

// KlineHistory fetches the finalized-candle seed batch for the symbol and
// interval, up to limit bars, oldest first.
func (c *Client) KlineHistory(ctx context.Context, symbol string, interval time.Duration, limit int) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", strconv.FormatInt(int64(interval/time.Second), 10))
	q.Set("limit", strconv.Itoa(limit))

	respBody, err := c.doRequest(ctx, http.MethodGet, "/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: get kline history: %w", err)
	}

	var bars []KlineBar
	if err := json.Unmarshal(respBody, &bars); err != nil {
		return nil, fmt.Errorf("exchange: decode kline history: %w", err)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for i := range bars {
		candles = append(candles, bars[i].ToDomain())
	}

	return candles, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and reads an HTTP request against the exchange
// API. It returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrOrderRejected, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
