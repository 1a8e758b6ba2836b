package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to the market collaborator's REST API. Every call may fail
// independently; callers treat failure as "data unavailable", never as fatal.
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

// ListOpportunities returns every opportunity regardless of status,
// including resolved and voided ones with their pool shares.
func (c *Client) ListOpportunities(ctx context.Context) ([]Opportunity, error) {
	var out []Opportunity
	if err := c.getJSON(ctx, "/api/v1/opportunities", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListActiveOpportunities(ctx context.Context) ([]Opportunity, error) {
	var out []Opportunity
	if err := c.getJSON(ctx, "/api/v1/opportunities?status=active", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOpportunity(ctx context.Context, id int64) (*Opportunity, error) {
	var out Opportunity
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/opportunities/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetChat(ctx context.Context, id int64, limit int) ([]ChatMessage, error) {
	var out []ChatMessage
	path := fmt.Sprintf("/api/v1/opportunities/%d/chat?limit=%d", id, limit)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOddsVector(ctx context.Context, id int64) ([]float64, error) {
	var out struct {
		Odds []float64 `json:"odds"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/opportunities/%d/odds", id), &out); err != nil {
		return nil, err
	}
	return out.Odds, nil
}

func (c *Client) SendMessage(ctx context.Context, opportunityID int64, sender, text string, replyTo *int64) error {
	body := map[string]any{
		"sender": sender,
		"text":   text,
	}
	if replyTo != nil {
		body["reply_to"] = *replyTo
	}
	path := fmt.Sprintf("/api/v1/opportunities/%d/chat", opportunityID)
	return c.postJSON(ctx, path, body, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("market http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
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
