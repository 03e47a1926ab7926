// Package sevdesk is a minimal client for the sevDesk v1 REST API,
// covering the cost center and voucher surface the sync engine needs.
package sevdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
)

const DefaultBaseURL = "https://my.sevdesk.de/api/v1"

// APIError is a non-2xx response from the sevDesk API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sevdesk: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client talks to the sevDesk API. Transient failures are retried with
// backoff by the underlying retryable client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client. baseURL defaults to the public API when empty.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    rc.StandardClient(),
	}
}

// get performs an authenticated GET and decodes the {"objects": [...]}
// envelope into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sevdesk: %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sevdesk: reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(body)}
	}

	envelope := struct {
		Objects json.RawMessage `json:"objects"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("sevdesk: decoding %s envelope: %w", endpoint, err)
	}

	if err := json.Unmarshal(envelope.Objects, out); err != nil {
		return fmt.Errorf("sevdesk: decoding %s objects: %w", endpoint, err)
	}

	return nil
}

// ListCostCenters returns all cost centers.
func (c *Client) ListCostCenters(ctx context.Context) ([]CostCenter, error) {
	var centers []CostCenter
	if err := c.get(ctx, "/CostCentre", nil, &centers); err != nil {
		return nil, err
	}
	return centers, nil
}

// ListVouchers returns vouchers matching the filter, with the cost center
// embedded.
func (c *Client) ListVouchers(ctx context.Context, filter VoucherFilter) ([]Voucher, error) {
	params := url.Values{}
	params.Set("embed", "costCentre")
	if filter.Status != "" {
		params.Set("status", filter.Status)
	}
	if !filter.DateFrom.IsZero() {
		params.Set("startDate", strconv.FormatInt(filter.DateFrom.Unix(), 10))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}

	var vouchers []Voucher
	if err := c.get(ctx, "/Voucher", params, &vouchers); err != nil {
		return nil, err
	}
	return vouchers, nil
}

// GetVoucher returns a single voucher by ID.
func (c *Client) GetVoucher(ctx context.Context, id string) (*Voucher, error) {
	params := url.Values{}
	params.Set("embed", "costCentre")

	var vouchers []Voucher
	if err := c.get(ctx, "/Voucher/"+id, params, &vouchers); err != nil {
		return nil, err
	}
	if len(vouchers) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Endpoint: "/Voucher/" + id, Body: "empty objects"}
	}
	return &vouchers[0], nil
}

// ListVoucherPositions returns the booking lines of a voucher, with the
// accounting type embedded so callers can see the SKR account numbers.
func (c *Client) ListVoucherPositions(ctx context.Context, voucherID string) ([]VoucherPosition, error) {
	params := url.Values{}
	params.Set("voucher[id]", voucherID)
	params.Set("voucher[objectName]", "Voucher")
	params.Set("embed", "accountingType")

	var positions []VoucherPosition
	if err := c.get(ctx, "/VoucherPos", params, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}
