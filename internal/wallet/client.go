package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the ledger-settlement collaborator. Placement failures are
// surfaced as-is; the caller does not retry within a cycle.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    httpClient,
	}
}

func (c *Client) GetAvailableBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	var out struct {
		Available decimal.Decimal `json:"available"`
	}
	path := "/api/v1/accounts/" + account + "/balance"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Available, nil
}

// WagerRecord is one row of the collaborator's authoritative wager history.
type WagerRecord struct {
	OpportunityID int64            `json:"opportunity_id"`
	Outcome       int              `json:"outcome"`
	Amount        decimal.Decimal  `json:"amount"`
	Odds          *decimal.Decimal `json:"odds,omitempty"`
	Reasoning     string           `json:"reasoning,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ListWagers returns the account's full wager history, oldest first.
func (c *Client) ListWagers(ctx context.Context, account string) ([]WagerRecord, error) {
	var out []WagerRecord
	path := "/api/v1/accounts/" + account + "/wagers"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlaceWager(ctx context.Context, account string, opportunityID int64, outcome int, amount decimal.Decimal) error {
	body := map[string]any{
		"opportunity_id": opportunityID,
		"outcome":        outcome,
		"amount":         amount,
	}
	path := "/api/v1/accounts/" + account + "/wagers"
	return c.postJSON(ctx, path, body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("wallet http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
