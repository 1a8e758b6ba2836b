package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a minimal chat-completions client for the reasoning oracle.
// Any OpenAI-compatible endpoint works; only the fields this service needs
// are modeled.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func NewClient(httpClient *http.Client, baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    httpClient,
	}
}

type Request struct {
	Model       string
	Temperature float64
	System      string
	User        string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat-completion request and returns the raw assistant
// text. Failures reaching or reading the endpoint come back as *TransportError.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.Model
	}
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	raw, err := json.Marshal(chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", &TransportError{Err: err}
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.APIKey) != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(hreq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{Err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))}
	}

	var cr chatResponse
	if err := json.Unmarshal(b, &cr); err != nil {
		return "", &ParseError{Err: err}
	}
	if len(cr.Choices) == 0 {
		return "", &ParseError{Err: fmt.Errorf("empty choices")}
	}
	return cr.Choices[0].Message.Content, nil
}

// CompleteJSON completes the request and decodes the reply's JSON payload into
// out, tolerating markdown fences and surrounding prose around the JSON body.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) error {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	payload, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
