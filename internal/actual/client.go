// Package actual is a client for the Actual Budget HTTP API, scoped to a
// single budget file.
package actual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// APIError is a non-2xx response from the Actual server.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("actual: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Category is a budget category.
type Category struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id,omitempty"`
}

// Account is a budget account.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Transaction is a budget transaction. Amount is integer cents, negative
// for outflows. ImportedID deduplicates re-imports on the server side.
type Transaction struct {
	ID         string `json:"id,omitempty"`
	AccountID  string `json:"account,omitempty"`
	Date       string `json:"date"` // YYYY-MM-DD
	Amount     int64  `json:"amount"`
	PayeeName  string `json:"payee_name,omitempty"`
	CategoryID string `json:"category,omitempty"`
	Notes      string `json:"notes,omitempty"`
	ImportedID string `json:"imported_id,omitempty"`
}

// Client talks to one budget file on an Actual server.
type Client struct {
	baseURL  string
	password string
	budgetID string
	http     *http.Client
}

// NewClient creates a client for the budget file identified by budgetID
// (the sync ID of the budget on the server).
func NewClient(baseURL, password, budgetID string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		budgetID: budgetID,
		http:     rc.StandardClient(),
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + "/v1/budgets/" + c.budgetID + endpoint
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("actual: %s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("actual: reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(data)}
	}

	if out == nil {
		return nil
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("actual: decoding %s envelope: %w", endpoint, err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("actual: decoding %s data: %w", endpoint, err)
	}

	return nil
}

// ListCategories returns all categories of the budget.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory creates a category and returns it with its server ID.
func (c *Client) CreateCategory(ctx context.Context, name string) (*Category, error) {
	payload := map[string]any{
		"category": map[string]any{"name": name},
	}

	var id string
	if err := c.do(ctx, http.MethodPost, "/categories", payload, &id); err != nil {
		return nil, err
	}

	return &Category{ID: id, Name: name}, nil
}

// GetOrCreateAccount returns the open account with the given name,
// creating it when missing.
func (c *Client) GetOrCreateAccount(ctx context.Context, name string) (*Account, error) {
	var accounts []Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &accounts); err != nil {
		return nil, err
	}

	for i := range accounts {
		if accounts[i].Name == name && !accounts[i].Closed {
			return &accounts[i], nil
		}
	}

	payload := map[string]any{
		"account": map[string]any{"name": name, "type": "checking"},
	}

	var id string
	if err := c.do(ctx, http.MethodPost, "/accounts", payload, &id); err != nil {
		return nil, err
	}

	return &Account{ID: id, Name: name}, nil
}

// CreateTransaction creates one transaction on the given account and
// returns its server ID.
func (c *Client) CreateTransaction(ctx context.Context, tx *Transaction) (string, error) {
	payload := map[string]any{
		"transaction": tx,
	}

	var id string
	endpoint := "/accounts/" + tx.AccountID + "/transactions"
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &id); err != nil {
		return "", err
	}
	if id == "" {
		// Some server versions return no body for imports; fall back to
		// the imported_id so callers still get a stable reference.
		id = tx.ImportedID
	}

	return id, nil
}

// DeleteTransaction removes a transaction by server ID.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/transactions/"+id, nil, nil)
}
